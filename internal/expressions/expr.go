package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/graphloom/loom/pkg/schema"
)

// ExprEngine is the default condition engine, built on expr-lang/expr.
// State keys are injected as top-level variables, so a condition over
// state {"quality_score": 7} can read `quality_score >= 8`. Supports array
// operations (filter, count, any, all), nil coalescing (??), optional
// chaining (?.), and pipe chaining (|).
// Compiled programs are cached; the engine is safe for concurrent use.
type ExprEngine struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExprEngine creates a new Expr expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: make(map[string]*vm.Program)}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs an expression with the state mapping as the environment.
// Unknown state fields resolve to nil rather than failing compilation,
// since conditions are routinely written against fields a step has not
// produced yet.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, state map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeDefinition, "empty expr expression")
	}

	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	env := state
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out, nil
}

func (e *ExprEngine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.programs[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDefinition,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.programs[expression] = prg
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
