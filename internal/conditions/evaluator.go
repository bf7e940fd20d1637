// Package conditions evaluates branch and loop-exit conditions against a
// run's state store. Evaluation is a pure function of the condition and
// the current state: no side effects, and runtime type mismatches yield
// false rather than errors.
package conditions

import (
	"context"
	"log/slog"

	"github.com/graphloom/loom/internal/expressions"
	"github.com/graphloom/loom/internal/state"
	"github.com/graphloom/loom/pkg/schema"
)

// Evaluator interprets the condition union against one run's state store.
type Evaluator struct {
	store  *state.Store
	expr   *expressions.ExprEngine
	cel    *expressions.CELEngine
	logger *slog.Logger
}

// New creates an Evaluator bound to a state store. logger may be nil.
func New(store *state.Store, logger *slog.Logger) (*Evaluator, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:  store,
		expr:   expressions.NewExprEngine(),
		cel:    celEngine,
		logger: logger,
	}, nil
}

// Evaluate resolves a condition to a boolean. Errors are reserved for
// definition-level problems (unknown logic, malformed expressions) that
// load-time validation should have rejected. Anything the run state can do
// wrong (missing fields, wrong types, unorderable values) evaluates false.
func (e *Evaluator) Evaluate(ctx context.Context, cond *schema.Condition) (bool, error) {
	if cond == nil {
		return false, schema.NewError(schema.ErrCodeDefinition, "condition is nil")
	}

	switch cond.Kind() {
	case schema.KindComposite:
		return e.evaluateComposite(ctx, cond)
	case schema.KindExpression:
		return e.evaluateExpression(ctx, cond)
	default:
		return e.evaluateSimple(ctx, cond)
	}
}

func (e *Evaluator) evaluateSimple(ctx context.Context, cond *schema.Condition) (bool, error) {
	fieldValue := e.store.Get(cond.Field, nil)
	if fieldValue == nil && !e.store.Has(cond.Field) {
		e.logger.WarnContext(ctx, "condition field not found in state, treating as absent",
			slog.String("field", cond.Field))
	}

	switch cond.Operator {
	case schema.OpLength, schema.OpMax, schema.OpMin:
		return e.evaluateCollection(ctx, fieldValue, cond)
	case schema.OpContains:
		return evaluateContains(fieldValue, cond.Value), nil
	default:
		return compareValues(fieldValue, cond.Operator, cond.Value), nil
	}
}

func (e *Evaluator) evaluateComposite(ctx context.Context, cond *schema.Condition) (bool, error) {
	switch cond.Logic {
	case schema.LogicAnd:
		for _, sub := range cond.Conditions {
			ok, err := e.Evaluate(ctx, sub)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case schema.LogicOr:
		for _, sub := range cond.Conditions {
			ok, err := e.Evaluate(ctx, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case schema.LogicNot:
		if len(cond.Conditions) != 1 {
			return false, schema.NewError(schema.ErrCodeDefinition, "NOT requires exactly 1 sub-condition")
		}
		ok, err := e.Evaluate(ctx, cond.Conditions[0])
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, schema.NewErrorf(schema.ErrCodeDefinition, "unknown logical operator %q", cond.Logic)
	}
}

// evaluateCollection handles length/max/min: derive a value from the
// collection, then apply the secondary comparator against the target.
func (e *Evaluator) evaluateCollection(ctx context.Context, fieldValue any, cond *schema.Condition) (bool, error) {
	if cond.Comparator == "" {
		return false, schema.NewErrorf(schema.ErrCodeDefinition, "comparator required for %s operator", cond.Operator)
	}

	var derived any
	switch cond.Operator {
	case schema.OpLength:
		n, ok := collectionLength(fieldValue)
		if !ok {
			e.logger.WarnContext(ctx, "length operator on non-collection value",
				slog.String("field", cond.Field))
			return false, nil
		}
		derived = n

	case schema.OpMax, schema.OpMin:
		elems, ok := asList(fieldValue)
		if !ok || len(elems) == 0 {
			return false, nil
		}
		extreme, ok := extremeOf(elems, cond.Operator == schema.OpMax)
		if !ok {
			return false, nil
		}
		derived = extreme
	}

	return compareValues(derived, cond.Comparator, cond.Value), nil
}

// evaluateExpression runs an expression condition through the named
// engine and requires a boolean result. Runtime evaluation failures are
// condition misses (false), not run-aborting errors; compile failures are
// definition errors and propagate.
func (e *Evaluator) evaluateExpression(ctx context.Context, cond *schema.Condition) (bool, error) {
	var engine expressions.Engine
	switch cond.Engine {
	case "", "expr":
		engine = e.expr
	case "cel":
		engine = e.cel
	default:
		return false, schema.NewErrorf(schema.ErrCodeDefinition, "unknown expression engine %q", cond.Engine)
	}

	out, err := engine.Evaluate(ctx, cond.Expr, e.store.Read())
	if err != nil {
		if schema.CodeOf(err) == schema.ErrCodeDefinition {
			return false, err
		}
		e.logger.WarnContext(ctx, "expression condition evaluation failed, treating as false",
			slog.String("expr", cond.Expr), slog.Any("error", err))
		return false, nil
	}

	b, ok := out.(bool)
	if !ok {
		e.logger.WarnContext(ctx, "expression condition returned non-boolean, treating as false",
			slog.String("expr", cond.Expr))
		return false, nil
	}
	return b, nil
}
