package conditions

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/graphloom/loom/pkg/schema"
)

// compareValues applies a relational operator to two dynamic values.
// Numbers compare numerically regardless of concrete type; strings compare
// lexically for the ordering operators; everything else supports only
// equality. Incomparable pairs are false.
func compareValues(left any, op schema.Operator, right any) bool {
	if lf, lok := toFloat(left); lok {
		rf, rok := toFloat(right)
		if !rok {
			return op == schema.OpNe
		}
		switch op {
		case schema.OpEq:
			return lf == rf
		case schema.OpNe:
			return lf != rf
		case schema.OpGt:
			return lf > rf
		case schema.OpLt:
			return lf < rf
		case schema.OpGe:
			return lf >= rf
		case schema.OpLe:
			return lf <= rf
		}
		return false
	}

	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return op == schema.OpNe
		}
		switch op {
		case schema.OpEq:
			return ls == rs
		case schema.OpNe:
			return ls != rs
		case schema.OpGt:
			return ls > rs
		case schema.OpLt:
			return ls < rs
		case schema.OpGe:
			return ls >= rs
		case schema.OpLe:
			return ls <= rs
		}
		return false
	}

	if lb, lok := left.(bool); lok {
		rb, rok := right.(bool)
		if !rok {
			return op == schema.OpNe
		}
		switch op {
		case schema.OpEq:
			return lb == rb
		case schema.OpNe:
			return lb != rb
		}
		return false
	}

	// nil or unsupported types: only equality is meaningful.
	switch op {
	case schema.OpEq:
		return left == nil && right == nil
	case schema.OpNe:
		return !(left == nil && right == nil)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// collectionLength returns the size of a list, map or string. Strings are
// measured in runes so the length matches what a user counts on screen.
func collectionLength(v any) (int, bool) {
	switch c := v.(type) {
	case []any:
		return len(c), true
	case map[string]any:
		return len(c), true
	case string:
		return utf8.RuneCountInString(c), true
	}
	return 0, false
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// extremeOf returns the max (or min) of a homogeneous list. Lists must be
// all-numeric or all-string; anything else is not orderable.
func extremeOf(elems []any, wantMax bool) (any, bool) {
	if first, ok := toFloat(elems[0]); ok {
		best := first
		for _, e := range elems[1:] {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			if (wantMax && f > best) || (!wantMax && f < best) {
				best = f
			}
		}
		return best, true
	}

	if first, ok := elems[0].(string); ok {
		best := first
		for _, e := range elems[1:] {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			if (wantMax && s > best) || (!wantMax && s < best) {
				best = s
			}
		}
		return best, true
	}

	return nil, false
}

// evaluateContains checks membership: element of a list, key of a map, or
// substring of a string.
func evaluateContains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, elem := range h {
			if compareValues(elem, schema.OpEq, needle) {
				return true
			}
		}
		return false
	case map[string]any:
		key, ok := needle.(string)
		if !ok {
			key = stringify(needle)
		}
		_, found := h[key]
		return found
	case string:
		return strings.Contains(h, stringify(needle))
	}
	return false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
