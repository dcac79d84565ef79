package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"heliex-studio/api/pkg/config"
	"heliex-studio/api/pkg/db"
	"heliex-studio/api/pkg/gemini"
	"heliex-studio/api/services/workflow"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.configFile)
		},
	}
}

func serve(ctx context.Context, configFile string) error {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(logHandler))

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	client, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	if cfg.Gemini.APIKey == "" {
		slog.Warn("No Gemini API key configured; agent and tool nodes fail until one is set via PUT /api/v1/credentials")
	}

	seed, err := seedBlueprint(cfg)
	if err != nil {
		return err
	}
	store := workflow.NewStore()
	store.Load(seed)

	blueprints, closeCatalog, err := blueprintCatalog(ctx, cfg, seed)
	if err != nil {
		return err
	}
	defer closeCatalog()

	engine, err := newEngine(cfg, client, slog.Default(),
		workflow.WithMetrics(workflow.NewMetrics(prometheus.DefaultRegisterer)),
		workflow.WithQuotaHandler(func(_ context.Context, err *workflow.QuotaExceededError) {
			slog.Warn("Shared API quota reached; a personal key can be set via PUT /api/v1/credentials",
				"node_id", err.NodeID, "error", err)
		}),
	)
	if err != nil {
		return err
	}

	workflowService := workflow.NewService(store, engine, blueprints, client)

	// setup router
	mainRouter := mux.NewRouter()
	mainRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	workflowService.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.HTTP.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: corsHandler,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "address", cfg.HTTP.Address)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			return err
		}

	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
	return nil
}

// blueprintCatalog returns the catalog behind /blueprints: the pgx repository
// when a database is configured, otherwise an in-memory one. Either way the
// seed graph is reachable through it.
func blueprintCatalog(ctx context.Context, cfg *config.Config, seed *workflow.Blueprint) (workflow.BlueprintRepo, func(), error) {
	if cfg.Database.URL == "" {
		return workflow.StaticBlueprints{seed.ID: seed}, func() {}, nil
	}

	pool, err := db.Connect(ctx, db.Config{
		URI:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  10 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	// Initialize database schema and seed the starting blueprint
	if err := workflow.InitDB(ctx, pool, seed); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return workflow.NewRepository(pool), pool.Close, nil
}
