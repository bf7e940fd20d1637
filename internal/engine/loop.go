package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphloom/loom/internal/logging"
	"github.com/graphloom/loom/pkg/schema"
)

// executeLoop runs a loop node: repeated full passes over its children in
// declaration order, checking the exit condition only after each complete
// pass. Iterations are 1-based and reported to the sink continuously.
func (e *Engine) executeLoop(ctx context.Context, rc *runContext, node *schema.NodeDefinition) error {
	maxIterations := node.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.defaultMaxIts
	}

	e.logger.InfoContext(ctx, "loop started",
		slog.String("loop", node.Name),
		slog.Int("max_iterations", maxIterations))

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return schema.NewErrorf(schema.ErrCodeExecution, "run cancelled: %s", err.Error()).WithNode(node.Name)
		}

		current := fmt.Sprintf("%s (iteration %d)", node.Name, iteration)
		it := iteration
		e.pushProgress(ctx, rc, RunProgress{
			CurrentNode:    &current,
			IterationCount: &it,
			State:          rc.st.Read(),
			Logs:           rc.rec.Entries(),
		})

		for _, childName := range node.Nodes {
			child, ok := rc.nodes[childName]
			if !ok {
				return schema.NewErrorf(schema.ErrCodeDefinition,
					"loop child %q not found in graph", childName).WithNode(node.Name)
			}
			if child.Kind() != schema.NodeTypeNormal {
				return schema.NewErrorf(schema.ErrCodeDefinition,
					"nested loop %q not supported", childName).WithNode(node.Name)
			}

			if err := e.invokeTool(logging.WithNode(ctx, childName), rc, child, iteration); err != nil {
				return err
			}

			childCurrent := fmt.Sprintf("%s (iteration %d) - %s", node.Name, iteration, childName)
			e.pushProgress(ctx, rc, RunProgress{
				CurrentNode: &childCurrent,
				State:       rc.st.Read(),
				Logs:        rc.rec.Entries(),
			})
		}

		// Exit condition is checked only after a full pass over the children.
		met, err := rc.eval.Evaluate(ctx, node.LoopCondition)
		if err != nil {
			return schema.WrapNode(err, node.Name)
		}
		if met {
			e.logger.InfoContext(ctx, "loop exit condition met",
				slog.String("loop", node.Name),
				slog.Int("iterations", iteration))
			return nil
		}
	}

	e.logger.WarnContext(ctx, "loop reached max iterations",
		slog.String("loop", node.Name),
		slog.Int("max_iterations", maxIterations))

	if node.Exhaustion() == schema.ExhaustionFail {
		err := schema.NewErrorf(schema.ErrCodeLoopExhausted,
			"max iterations (%d) reached without meeting exit condition", maxIterations).WithNode(node.Name)
		rc.rec.Record(ctx, node.Name, schema.StepFailed, maxIterations, err.Error(), 0)
		return err
	}

	// Continue policy: proceed downstream with whatever state the loop left.
	return nil
}
