package expressions

import "context"

// Engine evaluates string expressions against a run's state mapping.
// Three implementations: Expr (default condition logic), CEL (sandboxed
// conditions), GoJQ (state transforms for the builtin transform tool).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, state map[string]any) (any, error)
}
