package conditions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphloom/loom/internal/state"
	"github.com/graphloom/loom/pkg/schema"
)

func newEvaluator(t *testing.T, initial map[string]any) *Evaluator {
	t.Helper()
	ev, err := New(state.New(initial), nil)
	require.NoError(t, err)
	return ev
}

func TestEvaluateSimpleComparisons(t *testing.T) {
	ev := newEvaluator(t, map[string]any{
		"quality_score": 7,
		"name":          "alpha",
		"ratio":         0.5,
		"enabled":       true,
		"user":          map[string]any{"age": 30},
	})
	ctx := context.Background()

	tests := []struct {
		name string
		cond *schema.Condition
		want bool
	}{
		{"int greater or equal false", &schema.Condition{Field: "quality_score", Operator: schema.OpGe, Value: 8}, false},
		{"int greater or equal true", &schema.Condition{Field: "quality_score", Operator: schema.OpGe, Value: 7}, true},
		{"int vs float coercion", &schema.Condition{Field: "quality_score", Operator: schema.OpEq, Value: 7.0}, true},
		{"float less than", &schema.Condition{Field: "ratio", Operator: schema.OpLt, Value: 1}, true},
		{"string equality", &schema.Condition{Field: "name", Operator: schema.OpEq, Value: "alpha"}, true},
		{"string ordering", &schema.Condition{Field: "name", Operator: schema.OpLt, Value: "beta"}, true},
		{"bool equality", &schema.Condition{Field: "enabled", Operator: schema.OpEq, Value: true}, true},
		{"nested dot path", &schema.Condition{Field: "user.age", Operator: schema.OpGt, Value: 18}, true},
		{"type mismatch is false", &schema.Condition{Field: "name", Operator: schema.OpGt, Value: 3}, false},
		{"type mismatch not equal is true", &schema.Condition{Field: "name", Operator: schema.OpNe, Value: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateMissingFieldIsFalse(t *testing.T) {
	ev := newEvaluator(t, map[string]any{})
	ctx := context.Background()

	got, err := ev.Evaluate(ctx, &schema.Condition{Field: "absent", Operator: schema.OpEq, Value: 1})
	require.NoError(t, err)
	assert.False(t, got)

	// A missing field equals nil, so == nil holds.
	got, err = ev.Evaluate(ctx, &schema.Condition{Field: "absent", Operator: schema.OpEq, Value: nil})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateCollectionOperators(t *testing.T) {
	ev := newEvaluator(t, map[string]any{
		"issues":  []any{"a", "b", "c"},
		"empty":   []any{},
		"scores":  []any{3, 9.5, 7},
		"names":   []any{"mike", "alice", "zoe"},
		"mixed":   []any{1, "two"},
		"label":   "hello",
		"accent":  "café",
		"config":  map[string]any{"x": 1, "y": 2},
		"counter": 5,
	})
	ctx := context.Background()

	tests := []struct {
		name string
		cond *schema.Condition
		want bool
	}{
		{"length of list", &schema.Condition{Field: "issues", Operator: schema.OpLength, Comparator: schema.OpEq, Value: 3}, true},
		{"length of empty list", &schema.Condition{Field: "empty", Operator: schema.OpLength, Comparator: schema.OpEq, Value: 0}, true},
		{"length of string", &schema.Condition{Field: "label", Operator: schema.OpLength, Comparator: schema.OpGe, Value: 5}, true},
		{"length of non-ascii string counts runes", &schema.Condition{Field: "accent", Operator: schema.OpLength, Comparator: schema.OpEq, Value: 4}, true},
		{"length of map", &schema.Condition{Field: "config", Operator: schema.OpLength, Comparator: schema.OpEq, Value: 2}, true},
		{"length of scalar is false", &schema.Condition{Field: "counter", Operator: schema.OpLength, Comparator: schema.OpEq, Value: 1}, false},
		{"max of numbers", &schema.Condition{Field: "scores", Operator: schema.OpMax, Comparator: schema.OpEq, Value: 9.5}, true},
		{"min of numbers", &schema.Condition{Field: "scores", Operator: schema.OpMin, Comparator: schema.OpLt, Value: 4}, true},
		{"max of strings", &schema.Condition{Field: "names", Operator: schema.OpMax, Comparator: schema.OpEq, Value: "zoe"}, true},
		{"max of empty list is false", &schema.Condition{Field: "empty", Operator: schema.OpMax, Comparator: schema.OpGt, Value: 0}, false},
		{"max of mixed list is false", &schema.Condition{Field: "mixed", Operator: schema.OpMax, Comparator: schema.OpGt, Value: 0}, false},
		{"max of non-list is false", &schema.Condition{Field: "counter", Operator: schema.OpMax, Comparator: schema.OpEq, Value: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCollectionRequiresComparator(t *testing.T) {
	ev := newEvaluator(t, map[string]any{"issues": []any{"a"}})

	_, err := ev.Evaluate(context.Background(), &schema.Condition{
		Field: "issues", Operator: schema.OpLength, Value: 1,
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
}

func TestEvaluateContains(t *testing.T) {
	ev := newEvaluator(t, map[string]any{
		"tags":   []any{"red", "green"},
		"counts": []any{1, 2, 3},
		"meta":   map[string]any{"owner": "ops"},
		"text":   "hello world",
	})
	ctx := context.Background()

	tests := []struct {
		name string
		cond *schema.Condition
		want bool
	}{
		{"list member", &schema.Condition{Field: "tags", Operator: schema.OpContains, Value: "green"}, true},
		{"list non-member", &schema.Condition{Field: "tags", Operator: schema.OpContains, Value: "blue"}, false},
		{"numeric list member coerced", &schema.Condition{Field: "counts", Operator: schema.OpContains, Value: 2.0}, true},
		{"map key", &schema.Condition{Field: "meta", Operator: schema.OpContains, Value: "owner"}, true},
		{"map value is not a key", &schema.Condition{Field: "meta", Operator: schema.OpContains, Value: "ops"}, false},
		{"substring", &schema.Condition{Field: "text", Operator: schema.OpContains, Value: "lo wo"}, true},
		{"scalar haystack is false", &schema.Condition{Field: "missing", Operator: schema.OpContains, Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateComposite(t *testing.T) {
	ev := newEvaluator(t, map[string]any{"a": 1, "b": 2})
	ctx := context.Background()

	aIsOne := &schema.Condition{Field: "a", Operator: schema.OpEq, Value: 1}
	bIsThree := &schema.Condition{Field: "b", Operator: schema.OpEq, Value: 3}

	tests := []struct {
		name string
		cond *schema.Condition
		want bool
	}{
		{"and short-circuits false", &schema.Condition{Logic: schema.LogicAnd, Conditions: []*schema.Condition{aIsOne, bIsThree}}, false},
		{"and all true", &schema.Condition{Logic: schema.LogicAnd, Conditions: []*schema.Condition{aIsOne, aIsOne}}, true},
		{"or any true", &schema.Condition{Logic: schema.LogicOr, Conditions: []*schema.Condition{bIsThree, aIsOne}}, true},
		{"or all false", &schema.Condition{Logic: schema.LogicOr, Conditions: []*schema.Condition{bIsThree, bIsThree}}, false},
		{"not inverts", &schema.Condition{Logic: schema.LogicNot, Conditions: []*schema.Condition{bIsThree}}, true},
		{
			"nested composite",
			&schema.Condition{Logic: schema.LogicAnd, Conditions: []*schema.Condition{
				aIsOne,
				{Logic: schema.LogicNot, Conditions: []*schema.Condition{bIsThree}},
			}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateExpression(t *testing.T) {
	ev := newEvaluator(t, map[string]any{"quality_score": 9, "issues": []any{}})
	ctx := context.Background()

	got, err := ev.Evaluate(ctx, &schema.Condition{Expr: "quality_score >= 8 && len(issues) == 0"})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ev.Evaluate(ctx, &schema.Condition{Expr: "state.quality_score >= 8", Engine: "cel"})
	require.NoError(t, err)
	assert.True(t, got)

	// Non-boolean results are a miss, not an error.
	got, err = ev.Evaluate(ctx, &schema.Condition{Expr: "quality_score + 1"})
	require.NoError(t, err)
	assert.False(t, got)

	// Compile failures surface as definition errors.
	_, err = ev.Evaluate(ctx, &schema.Condition{Expr: "quality_score >=)"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))

	_, err = ev.Evaluate(ctx, &schema.Condition{Expr: "1 == 1", Engine: "jsonata"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
}

func TestEvaluateNilCondition(t *testing.T) {
	ev := newEvaluator(t, nil)
	_, err := ev.Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
}
