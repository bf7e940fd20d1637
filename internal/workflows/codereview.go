// Package workflows holds built-in workflow definitions seeded into the
// store at startup.
package workflows

import (
	"context"
	"log/slog"

	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/pkg/schema"
)

// CodeReviewName is the name of the seeded code review workflow.
const CodeReviewName = "code-review"

// CodeReview returns the built-in code review workflow: extract function
// metadata once, then iterate complexity checks, issue detection, scoring
// and improvement application until the quality score reaches 8.
func CodeReview() schema.GraphDefinition {
	return schema.GraphDefinition{
		Nodes: []schema.NodeDefinition{
			{Name: "extract_functions", Type: schema.NodeTypeNormal, ToolName: "extract_functions"},
			{
				Name: "improvement_loop",
				Type: schema.NodeTypeLoop,
				Nodes: []string{
					"check_complexity",
					"detect_issues",
					"calculate_quality",
					"suggest_improvements",
					"apply_suggestions",
				},
				LoopCondition: &schema.Condition{
					Field:    "quality_score",
					Operator: schema.OpGe,
					Value:    8,
				},
				MaxIterations: 15,
				OnMaxReached:  schema.ExhaustionFail,
			},
			{Name: "check_complexity", Type: schema.NodeTypeNormal, ToolName: "check_complexity"},
			{Name: "detect_issues", Type: schema.NodeTypeNormal, ToolName: "detect_issues"},
			{Name: "calculate_quality", Type: schema.NodeTypeNormal, ToolName: "calculate_quality"},
			{Name: "suggest_improvements", Type: schema.NodeTypeNormal, ToolName: "suggest_improvements"},
			{Name: "apply_suggestions", Type: schema.NodeTypeNormal, ToolName: "apply_suggestions"},
		},
		Edges: []schema.EdgeDefinition{
			{From: "extract_functions", To: "improvement_loop"},
		},
		InitialStateSchema: map[string]string{
			"code":          "str",
			"functions":     "list",
			"issues":        "list",
			"quality_score": "float",
			"suggestions":   "list",
			"revisions":     "int",
		},
	}
}

// Seed inserts the built-in workflows into the store if they are not
// already present. Matching is by name.
func Seed(ctx context.Context, st store.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	existing, err := st.ListWorkflows(ctx, store.WorkflowFilter{Name: CodeReviewName, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	wf := &store.Workflow{
		ID:          "builtin-code-review",
		Name:        CodeReviewName,
		Description: "Automated code review with iterative quality improvement",
		Definition:  CodeReview(),
	}
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		return err
	}
	logger.InfoContext(ctx, "seeded built-in workflow", slog.String("name", CodeReviewName))
	return nil
}
