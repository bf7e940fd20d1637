package engine

import (
	"context"
	"time"

	"github.com/graphloom/loom/internal/tools"
	"github.com/graphloom/loom/pkg/schema"
)

// invokeTool runs a normal node: resolve the tool, execute it against a
// copy of the current state, commit the returned state wholesale, and
// record the outcome. Every failure is recorded with duration-so-far and
// returned to the caller.
func (e *Engine) invokeTool(ctx context.Context, rc *runContext, node *schema.NodeDefinition, iteration int) error {
	start := time.Now()

	tool, err := e.tools.Resolve(node.ToolName)
	if err != nil {
		rc.rec.Record(ctx, node.Name, schema.StepFailed, iteration, err.Error(), time.Since(start))
		return schema.WrapNode(err, node.Name)
	}

	next, err := runTool(ctx, tool, node.ToolName, rc.st.Read())
	if err != nil {
		rc.rec.Record(ctx, node.Name, schema.StepFailed, iteration, err.Error(), time.Since(start))
		return schema.NewErrorf(schema.ErrCodeStepFailed, "tool %q failed: %s", node.ToolName, err.Error()).
			WithNode(node.Name).
			WithCause(err)
	}
	if next == nil {
		err := schema.NewErrorf(schema.ErrCodeContract, "tool %q returned no state", node.ToolName).
			WithNode(node.Name)
		rc.rec.Record(ctx, node.Name, schema.StepFailed, iteration, err.Error(), time.Since(start))
		return err
	}

	rc.st.Replace(next, "node:"+node.Name)
	rc.rec.Record(ctx, node.Name, schema.StepSuccess, iteration, "", time.Since(start))
	return nil
}

// runTool executes a tool, converting a panic into an error. Runs execute
// in background goroutines, so an escaped panic would take down the whole
// process and leave the run row stuck in running.
func runTool(ctx context.Context, tool tools.Tool, name string, state map[string]any) (next map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = schema.NewErrorf(schema.ErrCodeStepFailed, "tool %q panicked: %v", name, r)
		}
	}()
	return tool.Execute(ctx, state)
}
