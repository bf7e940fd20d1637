package validation

import "github.com/graphloom/loom/pkg/schema"

// GraphValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (node/tool/edge references, condition union rules)
// 3. Graph shape (entry point, reachability)
type GraphValidator struct {
	jsonSchema *GraphSchemaValidator
	tools      ToolLookup
}

// NewGraphValidator creates a GraphValidator. lookup may be nil to skip
// tool existence checks.
func NewGraphValidator(lookup ToolLookup) (*GraphValidator, error) {
	jsv, err := NewGraphSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{
		jsonSchema: jsv,
		tools:      lookup,
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: later stages assume a well-formed shape.
func (gv *GraphValidator) Validate(def *schema.GraphDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "graph definition is nil")
		return r
	}

	result := &schema.ValidationResult{}
	if err := gv.jsonSchema.ValidateGraph(def); err != nil {
		result.AddError("/", schema.CodeOf(err), err.Error())
		return result
	}

	result.Merge(validateSemantic(def, gv.tools))

	// Shape checks only make sense over valid references.
	if result.Valid() {
		result.Merge(validateGraphShape(def))
	}

	return result
}

// ValidateDefinition runs the pipeline and collapses the result into a
// single error, nil when valid.
func (gv *GraphValidator) ValidateDefinition(def *schema.GraphDefinition) error {
	return gv.Validate(def).ToError()
}

// ValidateInitialState delegates to the underlying schema validator.
func (gv *GraphValidator) ValidateInitialState(initial map[string]any, declared map[string]string) error {
	return gv.jsonSchema.ValidateInitialState(initial, declared)
}
