// Package engine executes workflow graphs: depth-first traversal from the
// entry node, conditional edges, and bounded loop nodes, over a
// replace-on-commit state store.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/graphloom/loom/internal/conditions"
	"github.com/graphloom/loom/internal/logging"
	"github.com/graphloom/loom/internal/recorder"
	"github.com/graphloom/loom/internal/state"
	"github.com/graphloom/loom/internal/tools"
	"github.com/graphloom/loom/pkg/schema"
)

// DefaultMaxIterations bounds loop nodes that don't set their own limit.
const DefaultMaxIterations = 15

// MaxIterationCeiling is the largest configurable loop bound.
const MaxIterationCeiling = 100

// RunProgress is a partial update pushed to the RunSink while a run
// executes. Nil pointer fields mean "unchanged"; State and Logs are full
// replacements when non-nil. Snapshots accompany only the terminal update.
type RunProgress struct {
	Status         *schema.RunStatus
	CurrentNode    *string
	IterationCount *int
	State          map[string]any
	Logs           []schema.LogEntry
	ErrorMessage   *string
	CompletedAt    *time.Time
	Snapshots      []state.Snapshot
}

// RunSink receives progress updates for observability and persistence.
// Sink failures never abort a run.
type RunSink interface {
	OnProgress(ctx context.Context, runID string, update RunProgress) error
}

// Result is the outcome of a completed or failed run.
type Result struct {
	RunID       string             `json:"run_id"`
	Status      schema.RunStatus   `json:"status"`
	FinalState  map[string]any     `json:"final_state"`
	Logs        []schema.LogEntry  `json:"logs"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Error       *schema.Error      `json:"error,omitempty"`
}

// Config holds engine configuration.
type Config struct {
	DefaultMaxIterations int // 0 = DefaultMaxIterations
}

// Engine coordinates workflow graph execution. It is stateless across
// runs; all per-run state lives in the runContext.
type Engine struct {
	tools         *tools.Registry
	sink          RunSink
	logger        *slog.Logger
	defaultMaxIts int
}

// New creates an Engine. sink may be nil for fire-and-forget execution;
// logger may be nil.
func New(reg *tools.Registry, sink RunSink, logger *slog.Logger, cfg Config) (*Engine, error) {
	maxIts := cfg.DefaultMaxIterations
	if maxIts == 0 {
		maxIts = DefaultMaxIterations
	}
	if maxIts < 1 || maxIts > MaxIterationCeiling {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"default max iterations %d out of range [1, %d]", maxIts, MaxIterationCeiling)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tools:         reg,
		sink:          sink,
		logger:        logger,
		defaultMaxIts: maxIts,
	}, nil
}

// runContext carries the per-run collaborators through the traversal.
type runContext struct {
	runID     string
	nodes     map[string]*schema.NodeDefinition
	adjacency map[string][]edgeTarget
	st        *state.Store
	rec       *recorder.Recorder
	eval      *conditions.Evaluator
}

type edgeTarget struct {
	to        string
	condition *schema.Condition
}

// Execute runs a workflow graph from the given initial state. The sink is
// updated continuously while the run progresses and once more with the
// terminal status. The returned Result is populated for failed runs too.
func (e *Engine) Execute(ctx context.Context, runID string, def *schema.GraphDefinition, initial map[string]any) (*Result, error) {
	ctx = logging.WithRunID(ctx, runID)
	startedAt := time.Now().UTC()

	result := &Result{
		RunID:     runID,
		StartedAt: startedAt,
	}

	rc, entry, err := e.prepareRun(runID, def, initial)
	if err != nil {
		return e.finishRun(ctx, result, nil, err)
	}

	e.logger.InfoContext(ctx, "workflow execution started",
		slog.String("entry_node", entry.Name),
		slog.Int("nodes", len(def.Nodes)))

	running := schema.RunStatusRunning
	e.pushProgress(ctx, rc, RunProgress{Status: &running})

	execErr := e.executeFrom(ctx, rc, entry.Name, newPathSet())
	return e.finishRun(ctx, result, rc, execErr)
}

// prepareRun validates the entry point and builds the run context.
func (e *Engine) prepareRun(runID string, def *schema.GraphDefinition, initial map[string]any) (*runContext, *schema.NodeDefinition, error) {
	if def == nil {
		return nil, nil, schema.NewError(schema.ErrCodeDefinition, "graph definition is nil")
	}

	entry, err := def.EntryNode()
	if err != nil {
		return nil, nil, err
	}

	nodes := make(map[string]*schema.NodeDefinition, len(def.Nodes))
	for i := range def.Nodes {
		nodes[def.Nodes[i].Name] = &def.Nodes[i]
	}

	adjacency := make(map[string][]edgeTarget)
	for _, edge := range def.Edges {
		adjacency[edge.From] = append(adjacency[edge.From], edgeTarget{
			to:        edge.To,
			condition: edge.Condition,
		})
	}

	st := state.New(initial)
	eval, err := conditions.New(st, e.logger)
	if err != nil {
		return nil, nil, err
	}

	return &runContext{
		runID:     runID,
		nodes:     nodes,
		adjacency: adjacency,
		st:        st,
		rec:       recorder.New(e.logger),
		eval:      eval,
	}, entry, nil
}

// finishRun fills the terminal result fields and pushes the final sink
// update. Failures surface both in the result and as the returned error.
func (e *Engine) finishRun(ctx context.Context, result *Result, rc *runContext, execErr error) (*Result, error) {
	now := time.Now().UTC()
	result.CompletedAt = now

	var progress RunProgress
	progress.CompletedAt = &now
	if rc != nil {
		result.FinalState = rc.st.Read()
		result.Logs = rc.rec.Entries()
		progress.State = result.FinalState
		progress.Logs = result.Logs
		progress.Snapshots = rc.st.History()
	}

	if execErr != nil {
		result.Status = schema.RunStatusFailed
		result.Error = asError(execErr)
		msg := execErr.Error()
		failed := schema.RunStatusFailed
		progress.Status = &failed
		progress.ErrorMessage = &msg

		e.logger.ErrorContext(ctx, "workflow execution failed", slog.Any("error", execErr))
	} else {
		result.Status = schema.RunStatusCompleted
		completed := schema.RunStatusCompleted
		none := ""
		progress.Status = &completed
		progress.CurrentNode = &none

		e.logger.InfoContext(ctx, "workflow execution completed")
	}

	if rc != nil {
		e.pushProgress(ctx, rc, progress)
	} else if e.sink != nil {
		if err := e.sink.OnProgress(ctx, result.RunID, progress); err != nil {
			e.logger.WarnContext(ctx, "run sink update failed", slog.Any("error", err))
		}
	}

	return result, execErr
}

// executeFrom runs the node and then its outgoing edges depth-first.
// Each conditional branch descends with its own copy of the visited set,
// so diamond shapes re-execute shared nodes while true cycles along one
// path are pruned.
func (e *Engine) executeFrom(ctx context.Context, rc *runContext, nodeName string, visited pathSet) error {
	if visited.has(nodeName) {
		e.logger.WarnContext(ctx, "cycle detected, pruning branch", slog.String("node", nodeName))
		return nil
	}
	visited.add(nodeName)

	node, ok := rc.nodes[nodeName]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeDefinition, "node %q not found in graph", nodeName)
	}

	nodeCtx := logging.WithNode(ctx, nodeName)
	e.pushProgress(nodeCtx, rc, RunProgress{
		CurrentNode: &nodeName,
		State:       rc.st.Read(),
		Logs:        rc.rec.Entries(),
	})

	switch node.Kind() {
	case schema.NodeTypeNormal:
		if err := e.invokeTool(nodeCtx, rc, node, 0); err != nil {
			return err
		}
	case schema.NodeTypeLoop:
		if err := e.executeLoop(nodeCtx, rc, node); err != nil {
			return err
		}
	default:
		return schema.NewErrorf(schema.ErrCodeDefinition, "unknown node type %q", node.Type).WithNode(nodeName)
	}

	for _, edge := range rc.adjacency[nodeName] {
		if edge.condition != nil {
			met, err := rc.eval.Evaluate(ctx, edge.condition)
			if err != nil {
				return err
			}
			if !met {
				e.logger.DebugContext(ctx, "edge condition not met, skipping branch",
					slog.String("from", nodeName), slog.String("to", edge.to))
				continue
			}
		}
		if err := e.executeFrom(ctx, rc, edge.to, visited.copy()); err != nil {
			return err
		}
	}
	return nil
}

// pushProgress delivers a sink update, logging and swallowing failures.
func (e *Engine) pushProgress(ctx context.Context, rc *runContext, update RunProgress) {
	if e.sink == nil {
		return
	}
	if err := e.sink.OnProgress(ctx, rc.runID, update); err != nil {
		e.logger.WarnContext(ctx, "run sink update failed", slog.Any("error", err))
	}
}

// pathSet tracks the nodes executed along one traversal path.
type pathSet map[string]struct{}

func newPathSet() pathSet { return make(pathSet) }

func (p pathSet) has(name string) bool { _, ok := p[name]; return ok }
func (p pathSet) add(name string)      { p[name] = struct{}{} }

func (p pathSet) copy() pathSet {
	c := make(pathSet, len(p))
	for k := range p {
		c[k] = struct{}{}
	}
	return c
}

func asError(err error) *schema.Error {
	if se, ok := err.(*schema.Error); ok {
		return se
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error())
}
