package runs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphloom/loom/internal/engine"
	"github.com/graphloom/loom/internal/expressions"
	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/internal/tools"
	"github.com/graphloom/loom/internal/validation"
	"github.com/graphloom/loom/pkg/schema"
)

func newTestLauncher(t *testing.T) (*Launcher, store.Store) {
	t.Helper()
	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg, expressions.NewGoJQEngine()))

	sink := store.NewEngineSink(st, nil)
	eng, err := engine.New(reg, sink, nil, engine.Config{})
	require.NoError(t, err)

	validator, err := validation.NewGraphValidator(reg)
	require.NoError(t, err)
	return New(st, eng, validator, nil), st
}

func incrementGraph() schema.GraphDefinition {
	return schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			{Name: "bump", Type: schema.NodeTypeNormal, ToolName: "increment"},
		},
		Edges:              []schema.EdgeDefinition{},
		InitialStateSchema: map[string]string{"count": "float"},
	}
}

func TestCreateWorkflowAndStartRun(t *testing.T) {
	l, st := newTestLauncher(t)
	ctx := context.Background()

	wf, result, err := l.CreateWorkflow(ctx, "bump-once", "", incrementGraph())
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.True(t, result.Valid())

	run, err := l.StartRun(ctx, wf.ID, map[string]any{"count": float64(0)})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusRunning, run.Status)

	l.Wait()

	got, snaps, err := l.RunStatus(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, got.Status)
	assert.Equal(t, float64(1), got.State["count"])
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "bump", got.Logs[0].Node)
	// Initial snapshot plus one per tool invocation.
	require.Len(t, snaps, 2)
	assert.Equal(t, "initial", snaps[0].Label)
	assert.Equal(t, "node:bump", snaps[1].Label)

	_, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
}

func TestCreateWorkflow_RejectsInvalidDefinition(t *testing.T) {
	l, _ := newTestLauncher(t)

	def := incrementGraph()
	def.Nodes[0].ToolName = "" // normal node without a tool

	_, result, err := l.CreateWorkflow(context.Background(), "broken", "", def)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Valid())
}

func TestCreateWorkflow_RequiresName(t *testing.T) {
	l, _ := newTestLauncher(t)
	_, _, err := l.CreateWorkflow(context.Background(), "", "", incrementGraph())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestStartRun_UnknownWorkflow(t *testing.T) {
	l, _ := newTestLauncher(t)
	_, err := l.StartRun(context.Background(), "nonexistent", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestStartRun_RejectsMistypedInitialState(t *testing.T) {
	l, _ := newTestLauncher(t)
	ctx := context.Background()

	wf, _, err := l.CreateWorkflow(ctx, "typed", "", incrementGraph())
	require.NoError(t, err)

	_, err = l.StartRun(ctx, wf.ID, map[string]any{"count": "zero"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestStartRun_FailedRunPersistsError(t *testing.T) {
	l, _ := newTestLauncher(t)
	ctx := context.Background()

	def := incrementGraph()
	def.Nodes[0].ToolName = "transform" // requires jq_program in state
	def.InitialStateSchema = nil

	wf, _, err := l.CreateWorkflow(ctx, "doomed", "", def)
	require.NoError(t, err)

	run, err := l.StartRun(ctx, wf.ID, map[string]any{})
	require.NoError(t, err)
	l.Wait()

	got, _, err := l.RunStatus(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}
