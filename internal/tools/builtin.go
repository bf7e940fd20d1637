package tools

import (
	"context"

	"github.com/graphloom/loom/internal/expressions"
	"github.com/graphloom/loom/pkg/schema"
)

// State keys read by the built-in tools.
const (
	keyCount        = "count"
	keyIssues       = "issues"
	keyQualityScore = "quality_score"
	keyJQProgram    = "jq_program"
	keyJQResult     = "jq_result"
)

// RegisterBuiltins registers the built-in tools in the given registry.
func RegisterBuiltins(reg *Registry, jq *expressions.GoJQEngine) error {
	builtins := []Tool{
		incrementTool(),
		qualityCheckTool(),
		transformTool(jq),
	}
	for _, t := range builtins {
		if err := reg.Register(t, false); err != nil {
			return err
		}
	}
	return nil
}

// incrementTool bumps the numeric "count" field by one, starting it at
// zero when absent or non-numeric.
func incrementTool() Tool {
	return NewTool("increment", "Increment the count field by one",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			count := 0.0
			if f, ok := toNumber(next[keyCount]); ok {
				count = f
			}
			next[keyCount] = count + 1
			return next, nil
		})
}

// qualityCheckTool derives "quality_score" from the "issues" list: a
// clean run scores 10 and each open issue costs a point, floored at zero.
func qualityCheckTool() Tool {
	return NewTool("quality_check", "Score run quality from the open issues list",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			issues, _ := next[keyIssues].([]any)
			score := 10 - len(issues)
			if score < 0 {
				score = 0
			}
			next[keyQualityScore] = score
			return next, nil
		})
}

// transformTool reshapes the state through a jq program read from the
// "jq_program" field. A program that yields an object replaces the state;
// any other result lands in "jq_result".
func transformTool(jq *expressions.GoJQEngine) Tool {
	return NewTool("transform", "Reshape the state with a jq program",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			program, ok := state[keyJQProgram].(string)
			if !ok || program == "" {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"transform requires a %s string field in state", keyJQProgram)
			}

			out, err := jq.Evaluate(ctx, program, state)
			if err != nil {
				return nil, err
			}

			if obj, ok := out.(map[string]any); ok {
				return obj, nil
			}
			next := cloneState(state)
			next[keyJQResult] = out
			return next, nil
		})
}

func cloneState(state map[string]any) map[string]any {
	next := make(map[string]any, len(state))
	for k, v := range state {
		next[k] = v
	}
	return next
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
