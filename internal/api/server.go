// Package api exposes the workflow engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/pkg/schema"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Store    store.Store
	Launcher Launcher
	Logger   *slog.Logger
}

// Launcher is the subset of the run launcher the API needs.
type Launcher interface {
	CreateWorkflow(ctx context.Context, name, description string, def schema.GraphDefinition) (*store.Workflow, *schema.ValidationResult, error)
	StartRun(ctx context.Context, workflowID string, initial map[string]any) (*store.Run, error)
	RunStatus(ctx context.Context, runID string) (*store.Run, []*store.RunSnapshot, error)
}

// Server is the HTTP API server.
type Server struct {
	deps Deps
}

// NewServer creates an API server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler with all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /graph/create", s.handleCreateGraph)
	mux.HandleFunc("GET /graph/list", s.handleListGraphs)
	mux.HandleFunc("GET /graph/{id}", s.handleGetGraph)
	mux.HandleFunc("POST /graph/run", s.handleRunGraph)
	mux.HandleFunc("GET /graph/state/{run_id}", s.handleRunState)
	mux.HandleFunc("GET /graph/runs", s.handleListRuns)

	mux.HandleFunc("POST /scheduler/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /scheduler/jobs", s.handleListJobs)
	mux.HandleFunc("PUT /scheduler/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /scheduler/jobs/{id}", s.handleDeleteJob)

	return mux
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("api server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
