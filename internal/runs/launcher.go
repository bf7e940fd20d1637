// Package runs ties the persistence layer and the execution engine together:
// it registers workflows, launches runs in the background and answers status
// queries. The HTTP API, the MCP server and the scheduler all go through it.
package runs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphloom/loom/internal/engine"
	"github.com/graphloom/loom/internal/logging"
	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/internal/validation"
	"github.com/graphloom/loom/pkg/schema"
)

// Launcher registers workflow definitions and starts runs against them.
type Launcher struct {
	store     store.Store
	engine    *engine.Engine
	validator *validation.GraphValidator
	logger    *slog.Logger

	wg sync.WaitGroup
}

// New returns a Launcher. The validator decides which definitions are
// accepted; the engine executes them.
func New(st store.Store, eng *engine.Engine, validator *validation.GraphValidator, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{store: st, engine: eng, validator: validator, logger: logger}
}

// CreateWorkflow validates and persists a graph definition. The returned
// validation result carries warnings even on success.
func (l *Launcher) CreateWorkflow(ctx context.Context, name, description string, def schema.GraphDefinition) (*store.Workflow, *schema.ValidationResult, error) {
	if name == "" {
		return nil, nil, schema.NewError(schema.ErrCodeValidation, "workflow name is required")
	}
	result := l.validator.Validate(&def)
	if !result.Valid() {
		return nil, result, result.ToError()
	}

	wf := &store.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Definition:  def,
	}
	if err := l.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, result, err
	}
	l.logger.InfoContext(ctx, "workflow created",
		slog.String("workflow_id", wf.ID),
		slog.String("name", name),
		slog.Int("nodes", len(def.Nodes)))
	return wf, result, nil
}

// StartRun creates a run record for the workflow and executes it in a
// background goroutine. The returned Run is the initial "running" record;
// callers poll run status for progress.
func (l *Launcher) StartRun(ctx context.Context, workflowID string, initial map[string]any) (*store.Run, error) {
	wf, err := l.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := l.validator.ValidateInitialState(initial, wf.Definition.InitialStateSchema); err != nil {
		return nil, err
	}

	run := &store.Run{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Status:     schema.RunStatusRunning,
		State:      initial,
		StartedAt:  time.Now().UTC(),
	}
	if err := l.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// The request context ends when the caller returns; the run does not.
		bg := logging.WithWorkflowID(context.Background(), wf.ID)
		bg = logging.WithRunID(bg, run.ID)
		if _, err := l.engine.Execute(bg, run.ID, &wf.Definition, initial); err != nil {
			l.logger.ErrorContext(bg, "run failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()))
		}
	}()

	l.logger.InfoContext(ctx, "run started",
		slog.String("run_id", run.ID),
		slog.String("workflow_id", wf.ID))
	return run, nil
}

// RunStatus returns the persisted run record together with its state history.
func (l *Launcher) RunStatus(ctx context.Context, runID string) (*store.Run, []*store.RunSnapshot, error) {
	run, err := l.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := l.store.ListSnapshots(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, snaps, nil
}

// Wait blocks until all in-flight runs have finished. Used on shutdown and
// in tests.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
