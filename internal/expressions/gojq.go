package expressions

import (
	"context"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/graphloom/loom/pkg/schema"
)

// GoJQEngine evaluates jq programs against run state. The builtin transform
// tool uses it to reshape state wholesale
// (e.g. `. + {issue_count: (.issues | length)}`).
// Compiled programs are cached; the engine is safe for concurrent use.
type GoJQEngine struct {
	mu       sync.RWMutex
	programs map[string]*gojq.Code
}

// NewGoJQEngine creates a new GoJQ expression engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: make(map[string]*gojq.Code)}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate runs a jq program with the normalized state mapping as input.
// A program that yields a single output returns it directly; several
// outputs are collected into a []any; zero outputs yield nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, state map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeDefinition, "empty jq expression")
	}

	code, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.RunWithContext(ctx, normalizeForJQ(state))
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if runErr, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for %q: %s", expression, runErr.Error()).
				WithCause(runErr).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results, nil
}

func (e *GoJQEngine) program(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := e.programs[expression]; ok {
		return code, nil
	}

	code, err := compileJQ(expression)
	if err != nil {
		return nil, err
	}
	e.programs[expression] = code
	return code, nil
}

func compileJQ(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, jqDefinitionError("jq parse error", expression, err)
	}

	// Empty env blocks $ENV and env access from user programs.
	code, err := gojq.Compile(query,
		gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, jqDefinitionError("jq compile error", expression, err)
	}
	return code, nil
}

func jqDefinitionError(stage, expression string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeDefinition,
		"%s in %q: %s", stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

// normalizeForJQ widens Go integer types to float64, the only number type
// gojq accepts as input.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, item := range val {
			out[key] = normalizeForJQ(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForJQ(item)
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

var _ Engine = (*GoJQEngine)(nil)
