package schema

// Operator is a comparison or collection operator in a simple condition.
type Operator string

const (
	OpEq       Operator = "=="
	OpNe       Operator = "!="
	OpGt       Operator = ">"
	OpLt       Operator = "<"
	OpGe       Operator = ">="
	OpLe       Operator = "<="
	OpLength   Operator = "length"
	OpMax      Operator = "max"
	OpMin      Operator = "min"
	OpContains Operator = "contains"
)

// LogicOp is the logical connective of a composite condition.
type LogicOp string

const (
	LogicAnd LogicOp = "AND"
	LogicOr  LogicOp = "OR"
	LogicNot LogicOp = "NOT"
)

// ConditionKind discriminates the condition union.
type ConditionKind int

const (
	KindSimple ConditionKind = iota
	KindComposite
	KindExpression
)

// Condition is a boolean expression over the run state. It is a closed
// tagged union with three variants:
//
//   - simple:     {"field": "quality_score", "operator": ">=", "value": 8}
//   - composite:  {"type": "AND", "conditions": [...]}
//   - expression: {"expr": "state.quality_score >= 8", "engine": "cel"}
//
// Collection operators (length, max, min) additionally require a
// secondary comparator applied between the derived value and the target:
// {"field": "issues", "operator": "length", "comparator": "==", "value": 0}.
type Condition struct {
	// Simple variant.
	Field      string   `json:"field,omitempty"`
	Operator   Operator `json:"operator,omitempty"`
	Comparator Operator `json:"comparator,omitempty"`
	Value      any      `json:"value,omitempty"`

	// Composite variant.
	Logic      LogicOp      `json:"type,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty"`

	// Expression variant.
	Expr   string `json:"expr,omitempty"`
	Engine string `json:"engine,omitempty"` // expr (default) | cel
}

// Kind returns the variant of the union. Expression wins over composite
// wins over simple, mirroring the strictness of Validate.
func (c *Condition) Kind() ConditionKind {
	switch {
	case c.Expr != "":
		return KindExpression
	case c.Logic != "":
		return KindComposite
	default:
		return KindSimple
	}
}

// collectionOps are the operators that derive a value from a collection
// and therefore require a secondary comparator.
var collectionOps = map[Operator]bool{
	OpLength: true,
	OpMax:    true,
	OpMin:    true,
}

// comparisonOps are the plain binary comparison operators.
var comparisonOps = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGe: true, OpLe: true,
}

// knownEngines are the expression engines a condition may name.
var knownEngines = map[string]bool{"": true, "expr": true, "cel": true}

// Validate checks the condition (recursively) for definition-time errors:
// mixed variants, missing fields, comparator misuse, and malformed
// composite arity. These are caught at load time, never mid-run.
func (c *Condition) Validate() error {
	if c == nil {
		return NewError(ErrCodeDefinition, "condition is nil")
	}

	switch c.Kind() {
	case KindExpression:
		if c.Logic != "" || c.Field != "" || c.Operator != "" {
			return NewError(ErrCodeDefinition, "expression condition must not carry simple or composite fields")
		}
		if !knownEngines[c.Engine] {
			return NewErrorf(ErrCodeDefinition, "unknown expression engine %q", c.Engine)
		}
		return nil

	case KindComposite:
		if c.Field != "" || c.Operator != "" {
			return NewError(ErrCodeDefinition, "composite condition must not carry simple fields")
		}
		switch c.Logic {
		case LogicNot:
			if len(c.Conditions) != 1 {
				return NewError(ErrCodeDefinition, "NOT requires exactly 1 sub-condition")
			}
		case LogicAnd, LogicOr:
			if len(c.Conditions) < 2 {
				return NewErrorf(ErrCodeDefinition, "%s requires at least 2 sub-conditions", c.Logic)
			}
		default:
			return NewErrorf(ErrCodeDefinition, "unknown logical operator %q", c.Logic)
		}
		for _, sub := range c.Conditions {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return nil

	default: // simple
		if c.Field == "" {
			return NewError(ErrCodeDefinition, "simple condition requires a field")
		}
		if !comparisonOps[c.Operator] && !collectionOps[c.Operator] && c.Operator != OpContains {
			return NewErrorf(ErrCodeDefinition, "unknown operator %q", c.Operator)
		}
		if collectionOps[c.Operator] {
			if c.Comparator == "" {
				return NewErrorf(ErrCodeDefinition, "comparator required for %s operator", c.Operator)
			}
			if !comparisonOps[c.Comparator] {
				return NewErrorf(ErrCodeDefinition, "invalid comparator %q", c.Comparator)
			}
		} else if c.Comparator != "" {
			return NewErrorf(ErrCodeDefinition, "comparator not allowed with %s operator", c.Operator)
		}
		return nil
	}
}
