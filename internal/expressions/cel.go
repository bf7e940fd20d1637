package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/graphloom/loom/pkg/schema"
)

// CELEngine evaluates Common Expression Language conditions. The
// environment exposes one top-level variable `state` (map(string, dyn)),
// so conditions read like `state.quality_score >= 8.0`.
// Compiled programs are cached; the engine is safe for concurrent use.
type CELEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEngine creates a new CEL expression engine.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate runs a CEL expression with the run state bound to `state`.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, state map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeDefinition, "empty CEL expression")
	}

	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	if state == nil {
		state = map[string]any{}
	}

	out, _, err := prg.Eval(map[string]any{"state": state})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out.Value(), nil
}

func (e *CELEngine) program(expression string) (cel.Program, error) {
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

	prg, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	e.programs[expression] = prg
	return prg, nil
}

func (e *CELEngine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, celDefinitionError("CEL compile error", expression, issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, celDefinitionError("CEL program error", expression, err)
	}
	return prg, nil
}

func celDefinitionError(stage, expression string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeDefinition,
		"%s in %q: %s", stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

var _ Engine = (*CELEngine)(nil)
