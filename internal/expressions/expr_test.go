package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphloom/loom/pkg/schema"
)

func TestExprEvaluate(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	tests := []struct {
		name  string
		expr  string
		state map[string]any
		want  any
	}{
		{
			name:  "comparison",
			expr:  "quality_score >= 8",
			state: map[string]any{"quality_score": 9},
			want:  true,
		},
		{
			name:  "array count",
			expr:  "count(issues, # != nil) == 0",
			state: map[string]any{"issues": []any{}},
			want:  true,
		},
		{
			name:  "nil coalescing on missing field",
			expr:  "(score ?? 0) > 5",
			state: map[string]any{},
			want:  false,
		},
		{
			name:  "string predicate",
			expr:  `status == "done"`,
			state: map[string]any{"status": "done"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(ctx, tt.expr, tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprCompileError(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "1 +", nil)

	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDefinition, schema.CodeOf(err))
}

func TestExprEmptyExpression(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)

	require.Error(t, err)
}

func TestExprCachesPrograms(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "n > 1", map[string]any{"n": 2})
	require.NoError(t, err)
	_, err = e.Evaluate(ctx, "n > 1", map[string]any{"n": 0})
	require.NoError(t, err)

	assert.Len(t, e.programs, 1)
}
