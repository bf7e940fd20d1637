package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphloom/loom/internal/tools"
	"github.com/graphloom/loom/pkg/schema"
)

// captureSink records every progress update it receives.
type captureSink struct {
	mu      sync.Mutex
	updates []RunProgress
}

func (s *captureSink) OnProgress(ctx context.Context, runID string, update RunProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return nil
}

func (s *captureSink) all() []RunProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunProgress, len(s.updates))
	copy(out, s.updates)
	return out
}

func newTestEngine(t *testing.T, reg *tools.Registry, sink RunSink) *Engine {
	t.Helper()
	eng, err := New(reg, sink, nil, Config{})
	require.NoError(t, err)
	return eng
}

// trackTool appends its node's invocations to order and passes state through.
func trackTool(name string, order *[]string) tools.Tool {
	return tools.NewTool(name, "tracking stub",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			*order = append(*order, name)
			next := make(map[string]any, len(state))
			for k, v := range state {
				next[k] = v
			}
			return next, nil
		})
}

func incrementTool() tools.Tool {
	return tools.NewTool("increment", "count += 1",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := make(map[string]any, len(state))
			for k, v := range state {
				next[k] = v
			}
			count, _ := next["count"].(float64)
			if c, ok := next["count"].(int); ok {
				count = float64(c)
			}
			next["count"] = count + 1
			return next, nil
		})
}

func simpleNode(name, tool string) schema.NodeDefinition {
	return schema.NodeDefinition{Name: name, Type: schema.NodeTypeNormal, ToolName: tool}
}

func TestExecuteIncrementLoopScenario(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(incrementTool(), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("S", "increment"),
			{
				Name:  "L",
				Type:  schema.NodeTypeLoop,
				Nodes: []string{"S"},
				LoopCondition: &schema.Condition{
					Field: "count", Operator: schema.OpGe, Value: 3,
				},
				MaxIterations: 10,
				OnMaxReached:  schema.ExhaustionFail,
			},
		},
		Edges: []schema.EdgeDefinition{
			{From: "S", To: "L"},
		},
	}

	sink := &captureSink{}
	eng := newTestEngine(t, reg, sink)

	result, err := eng.Execute(context.Background(), "run-1", def, map[string]any{"count": 0})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, result.Status)
	assert.Equal(t, float64(3), result.FinalState["count"])

	// One entry for the entry node plus one per loop iteration.
	require.Len(t, result.Logs, 4)
	for _, entry := range result.Logs {
		assert.Equal(t, "S", entry.Node)
		assert.Equal(t, schema.StepSuccess, entry.Status)
	}
	assert.Equal(t, 0, result.Logs[0].Iteration)
	assert.Equal(t, 1, result.Logs[1].Iteration)
	assert.Equal(t, 2, result.Logs[2].Iteration)
	assert.Equal(t, 3, result.Logs[3].Iteration)

	// Terminal sink update carries the final status and snapshots.
	updates := sink.all()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.NotNil(t, last.Status)
	assert.Equal(t, schema.RunStatusCompleted, *last.Status)
	assert.NotEmpty(t, last.Snapshots)
	assert.NotNil(t, last.CompletedAt)
}

func TestExecuteEntryPointErrors(t *testing.T) {
	reg := tools.NewRegistry()
	eng := newTestEngine(t, reg, nil)
	ctx := context.Background()

	// Two disconnected roots.
	ambiguous := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("a", "t"), simpleNode("b", "t")},
	}
	result, err := eng.Execute(ctx, "run-amb", ambiguous, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
	assert.Equal(t, schema.RunStatusFailed, result.Status)

	// Pure cycle: every node has an incoming edge.
	cycle := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("a", "t"), simpleNode("b", "t")},
		Edges: []schema.EdgeDefinition{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}
	_, err = eng.Execute(ctx, "run-cycle", cycle, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
}

func TestExecutePrunesCycleOnSamePath(t *testing.T) {
	var order []string
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(trackTool("noop-a", &order), false))
	require.NoError(t, reg.Register(trackTool("noop-b", &order), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("A", "noop-a"),
			simpleNode("B", "noop-b"),
		},
		Edges: []schema.EdgeDefinition{
			{From: "A", To: "B"},
			{From: "B", To: "A"}, // back-edge, pruned
		},
	}

	eng := newTestEngine(t, reg, nil)
	result, err := eng.Execute(context.Background(), "run-2", def, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, result.Status)
	assert.Equal(t, []string{"noop-a", "noop-b"}, order)
	assert.Len(t, result.Logs, 2)
}

func TestExecuteDiamondRevisitsSharedNode(t *testing.T) {
	var order []string
	reg := tools.NewRegistry()
	for _, name := range []string{"ta", "tb", "tc", "td"} {
		require.NoError(t, reg.Register(trackTool(name, &order), false))
	}

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("A", "ta"), simpleNode("B", "tb"),
			simpleNode("C", "tc"), simpleNode("D", "td"),
		},
		Edges: []schema.EdgeDefinition{
			{From: "A", To: "B"},
			{From: "A", To: "C"},
			{From: "B", To: "D"},
			{From: "C", To: "D"},
		},
	}

	eng := newTestEngine(t, reg, nil)
	_, err := eng.Execute(context.Background(), "run-3", def, nil)
	require.NoError(t, err)

	// Depth-first in edge declaration order; D runs once per path.
	assert.Equal(t, []string{"ta", "tb", "td", "tc", "td"}, order)
}

func TestExecuteConditionalEdge(t *testing.T) {
	var order []string
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(trackTool("root", &order), false))
	require.NoError(t, reg.Register(trackTool("taken", &order), false))
	require.NoError(t, reg.Register(trackTool("skipped", &order), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("start", "root"),
			simpleNode("yes", "taken"),
			simpleNode("no", "skipped"),
		},
		Edges: []schema.EdgeDefinition{
			{From: "start", To: "yes", Condition: &schema.Condition{
				Field: "flag", Operator: schema.OpEq, Value: true,
			}},
			{From: "start", To: "no", Condition: &schema.Condition{
				Field: "flag", Operator: schema.OpEq, Value: false,
			}},
		},
	}

	eng := newTestEngine(t, reg, nil)
	result, err := eng.Execute(context.Background(), "run-4", def, map[string]any{"flag": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "taken"}, order)
	assert.Len(t, result.Logs, 2)
}

func TestExecuteLoopExhaustionFail(t *testing.T) {
	var order []string
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(trackTool("child", &order), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("prep", "child"),
			{
				Name:  "stuck",
				Type:  schema.NodeTypeLoop,
				Nodes: []string{"prep"},
				LoopCondition: &schema.Condition{
					Field: "never", Operator: schema.OpEq, Value: true,
				},
				MaxIterations: 3,
				OnMaxReached:  schema.ExhaustionFail,
			},
		},
		Edges: []schema.EdgeDefinition{{From: "prep", To: "stuck"}},
	}

	sink := &captureSink{}
	eng := newTestEngine(t, reg, sink)
	result, err := eng.Execute(context.Background(), "run-5", def, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeLoopExhausted, schema.CodeOf(err))
	assert.Equal(t, schema.RunStatusFailed, result.Status)

	// Entry pass + exactly max_iterations full passes.
	assert.Equal(t, []string{"child", "child", "child", "child"}, order)

	last := result.Logs[len(result.Logs)-1]
	assert.Equal(t, "stuck", last.Node)
	assert.Equal(t, schema.StepFailed, last.Status)
	assert.Equal(t, 3, last.Iteration)

	updates := sink.all()
	terminal := updates[len(updates)-1]
	require.NotNil(t, terminal.Status)
	assert.Equal(t, schema.RunStatusFailed, *terminal.Status)
	require.NotNil(t, terminal.ErrorMessage)
	assert.Contains(t, *terminal.ErrorMessage, "max iterations")
}

func TestExecuteLoopExhaustionContinue(t *testing.T) {
	var order []string
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(trackTool("child", &order), false))
	require.NoError(t, reg.Register(trackTool("after", &order), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			simpleNode("prep", "child"),
			{
				Name:  "bounded",
				Type:  schema.NodeTypeLoop,
				Nodes: []string{"prep"},
				LoopCondition: &schema.Condition{
					Field: "never", Operator: schema.OpEq, Value: true,
				},
				MaxIterations: 2,
				OnMaxReached:  schema.ExhaustionContinue,
			},
			simpleNode("downstream", "after"),
		},
		Edges: []schema.EdgeDefinition{
			{From: "prep", To: "bounded"},
			{From: "bounded", To: "downstream"},
		},
	}

	eng := newTestEngine(t, reg, nil)
	result, err := eng.Execute(context.Background(), "run-6", def, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, result.Status)
	assert.Equal(t, []string{"child", "child", "child", "after"}, order)
}

func TestExecuteUnknownTool(t *testing.T) {
	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("only", "missing-tool")},
	}

	eng := newTestEngine(t, tools.NewRegistry(), nil)
	result, err := eng.Execute(context.Background(), "run-7", def, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
	assert.Equal(t, schema.RunStatusFailed, result.Status)

	require.Len(t, result.Logs, 1)
	assert.Equal(t, schema.StepFailed, result.Logs[0].Status)
	assert.Contains(t, result.Logs[0].Message, "missing-tool")
}

func TestExecuteToolFailurePropagates(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewTool("boom", "always fails",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			return nil, assert.AnError
		}), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("only", "boom")},
	}

	eng := newTestEngine(t, reg, nil)
	result, err := eng.Execute(context.Background(), "run-8", def, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStepFailed, schema.CodeOf(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, schema.RunStatusFailed, result.Status)
}

func TestExecuteRecoversToolPanic(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewTool("explode", "always panics",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			panic("tool exploded")
		}), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("only", "explode")},
	}

	sink := &captureSink{}
	eng := newTestEngine(t, reg, sink)

	result, err := eng.Execute(context.Background(), "run-panic", def, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStepFailed, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, schema.RunStatusFailed, result.Status)

	updates := sink.all()
	require.NotEmpty(t, updates)
	terminal := updates[len(updates)-1]
	require.NotNil(t, terminal.Status)
	assert.Equal(t, schema.RunStatusFailed, *terminal.Status)
	require.NotNil(t, terminal.ErrorMessage)
	assert.Contains(t, *terminal.ErrorMessage, "explode")
}

func TestExecuteNilStateIsContractViolation(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewTool("void", "returns nothing",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			return nil, nil
		}), false))

	def := &schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{simpleNode("only", "void")},
	}

	eng := newTestEngine(t, reg, nil)
	_, err := eng.Execute(context.Background(), "run-9", def, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeContract, schema.CodeOf(err))
}

func TestNewRejectsOutOfRangeDefault(t *testing.T) {
	_, err := New(tools.NewRegistry(), nil, nil, Config{DefaultMaxIterations: 101})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = New(tools.NewRegistry(), nil, nil, Config{DefaultMaxIterations: -1})
	require.Error(t, err)
}
