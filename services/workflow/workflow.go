package workflow

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// GraphResponse is the canvas state returned to the view layer.
type GraphResponse struct {
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
	Executing bool   `json:"executing"`
}

// AddNodeRequest is the body of POST /workflow/nodes.
type AddNodeRequest struct {
	Type    NodeType `json:"type"`
	SubType string   `json:"subType"`
}

// ConnectRequest is the body of POST /workflow/edges.
type ConnectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ConfigRequest is the body of PUT /workflow/nodes/{id}/config.
type ConfigRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// CredentialsRequest is the body of PUT /credentials.
type CredentialsRequest struct {
	APIKey string `json:"apiKey"`
}

// HandleGetWorkflow returns every node and edge on the canvas.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, GraphResponse{
		Nodes:     snap.Nodes,
		Edges:     snap.Edges,
		Executing: s.engine.Executing(),
	})
}

// HandleAddNode creates a node of the requested type.
func (s *Service) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, errInvalid("type").Error())
		return
	}

	node := s.store.AddNode(req.Type, req.SubType)
	slog.Debug("Added node", "id", node.ID, "type", node.Type)
	writeJSON(w, http.StatusCreated, node)
}

// HandleRemoveNode deletes a node and its edges.
func (s *Service) HandleRemoveNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.store.RemoveNode(id) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateNodeConfig merges one config key into a node.
func (s *Service) HandleUpdateNodeConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, errMissing("key").Error())
		return
	}

	node, ok := s.store.UpdateNodeConfig(id, req.Key, req.Value)
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// HandleUpdateNodePosition moves a node on the canvas.
func (s *Service) HandleUpdateNodePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var pos Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, ok := s.store.UpdateNodePosition(id, pos)
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// HandleConnect appends a directed edge between two nodes.
func (s *Service) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, errMissing("source").Error())
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, errMissing("target").Error())
		return
	}

	writeJSON(w, http.StatusCreated, s.store.Connect(req.Source, req.Target))
}

// HandleReset returns every node to idle.
func (s *Service) HandleReset(w http.ResponseWriter, r *http.Request) {
	if s.engine.Executing() {
		writeError(w, http.StatusConflict, ErrRunInProgress.Error())
		return
	}
	s.store.ResetStatuses()
	s.HandleGetWorkflow(w, r)
}

// HandleRun executes the current graph and returns step-by-step results.
// Node statuses are applied to the store while the run progresses, so
// concurrent GET /workflow requests observe them.
func (s *Service) HandleRun(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Running workflow")

	results, err := s.engine.Run(r.Context(), s.store.Snapshot(), s.store)

	var cfgErr *ConfigurationError
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusUnprocessableEntity, cfgErr.Error())
		return
	case err != nil && results == nil:
		slog.Error("Workflow run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	case err != nil:
		slog.Warn("Workflow run cancelled", "run_id", results.ExecutionID, "error", err)
	}

	writeJSON(w, http.StatusOK, results)
}

// HandleLogs returns the rolling run log.
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"logs": s.engine.RunLog().Lines()})
}

// HandleGetBlueprint loads a blueprint from the catalog and returns it as JSON.
func (s *Service) HandleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Getting blueprint", "id", id)

	bp, ok := s.getBlueprint(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

// HandleLoadBlueprint replaces the canvas with a blueprint from the catalog.
func (s *Service) HandleLoadBlueprint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Loading blueprint", "id", id)

	if s.engine.Executing() {
		writeError(w, http.StatusConflict, ErrRunInProgress.Error())
		return
	}
	bp, ok := s.getBlueprint(w, r, id)
	if !ok {
		return
	}
	s.store.Load(bp)
	s.HandleGetWorkflow(w, r)
}

// HandleSetCredentials switches the model client to a personal API key,
// the remediation offered after a quota error.
func (s *Service) HandleSetCredentials(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		writeError(w, http.StatusNotImplemented, "credential switching is not available")
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, errMissing("apiKey").Error())
		return
	}
	if err := s.credentials.SetAPIKey(r.Context(), req.APIKey); err != nil {
		slog.Error("Failed to switch API key", "error", err)
		writeError(w, http.StatusBadRequest, "could not use the provided API key")
		return
	}
	slog.Info("Model API key switched")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) getBlueprint(w http.ResponseWriter, r *http.Request, id string) (*Blueprint, bool) {
	bp, err := s.blueprints.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get blueprint", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if bp == nil {
		writeError(w, http.StatusNotFound, "blueprint not found")
		return nil, false
	}
	return bp, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

type validationError struct {
	field string
	kind  string
}

func (e *validationError) Error() string {
	if e.kind == "missing" {
		return e.field + " is required"
	}
	return e.field + " is invalid"
}

func errMissing(field string) error { return &validationError{field: field, kind: "missing"} }
func errInvalid(field string) error { return &validationError{field: field, kind: "invalid"} }
