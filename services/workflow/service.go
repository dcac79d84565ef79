package workflow

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// BlueprintRepo abstracts blueprint lookup for testability.
type BlueprintRepo interface {
	Get(ctx context.Context, id string) (*Blueprint, error)
}

// CredentialSetter swaps the API key used by the model client.
type CredentialSetter interface {
	SetAPIKey(ctx context.Context, apiKey string) error
}

// Service wires together the graph store, the engine and the blueprint
// catalog for the agent-builder view.
type Service struct {
	store       *Store
	engine      *Engine
	blueprints  BlueprintRepo
	credentials CredentialSetter
}

// NewService creates a Service. credentials may be nil, in which case the
// credentials endpoint reports that key switching is unavailable.
func NewService(store *Store, engine *Engine, blueprints BlueprintRepo, credentials CredentialSetter) *Service {
	return &Service{
		store:       store,
		engine:      engine,
		blueprints:  blueprints,
		credentials: credentials,
	}
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes registers workflow HTTP handlers on the given router.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.Handle("/workflow", jsonMiddleware(http.HandlerFunc(s.HandleGetWorkflow))).Methods("GET")

	router := parentRouter.PathPrefix("/workflow").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("/nodes", s.HandleAddNode).Methods("POST")
	router.HandleFunc("/nodes/{id}", s.HandleRemoveNode).Methods("DELETE")
	router.HandleFunc("/nodes/{id}/config", s.HandleUpdateNodeConfig).Methods("PUT")
	router.HandleFunc("/nodes/{id}/position", s.HandleUpdateNodePosition).Methods("PUT")
	router.HandleFunc("/edges", s.HandleConnect).Methods("POST")
	router.HandleFunc("/reset", s.HandleReset).Methods("POST")
	router.HandleFunc("/run", s.HandleRun).Methods("POST")
	router.HandleFunc("/logs", s.HandleLogs).Methods("GET")

	bp := parentRouter.PathPrefix("/blueprints").Subrouter()
	bp.Use(jsonMiddleware)
	bp.HandleFunc("/{id}", s.HandleGetBlueprint).Methods("GET")
	bp.HandleFunc("/{id}/load", s.HandleLoadBlueprint).Methods("POST")

	parentRouter.Handle("/credentials", jsonMiddleware(http.HandlerFunc(s.HandleSetCredentials))).Methods("PUT")
}
