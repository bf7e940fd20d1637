// Package validation checks workflow graph definitions before they are
// stored or executed: JSON Schema structure, semantic references, and
// graph shape.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/graphloom/loom/pkg/schema"
)

// graphSchemaJSON is the JSON Schema for GraphDefinition validation.
// Embedded as a constant to avoid filesystem dependencies. Conditions are
// a tagged union that JSON Schema can't discriminate cleanly, so they are
// accepted as objects here and checked by the semantic stage.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://graphloom.dev/schemas/graph.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    },
    "initial_state_schema": {
      "type": "object",
      "additionalProperties": {
        "type": "string",
        "enum": ["str", "int", "float", "bool", "list", "dict"]
      }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {
          "type": "string",
          "minLength": 1
        },
        "type": {
          "type": "string",
          "enum": ["normal", "loop"]
        },
        "tool_name": { "type": "string" },
        "nodes": {
          "type": "array",
          "items": { "type": "string" }
        },
        "loop_condition": { "type": "object" },
        "max_iterations": {
          "type": "integer",
          "minimum": 1,
          "maximum": 100
        },
        "on_max_reached": {
          "type": "string",
          "enum": ["fail", "continue"]
        }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["from_node", "to_node"],
      "properties": {
        "from_node": {
          "type": "string",
          "minLength": 1
        },
        "to_node": {
          "type": "string",
          "minLength": 1
        },
        "condition": { "type": "object" }
      },
      "additionalProperties": false
    }
  }
}`

// stateTypeSchemas maps initial_state_schema type names to JSON Schema types.
var stateTypeSchemas = map[string]string{
	"str":   "string",
	"int":   "integer",
	"float": "number",
	"bool":  "boolean",
	"list":  "array",
	"dict":  "object",
}

// GraphSchemaValidator validates graph definitions and initial states
// against JSON Schema Draft 2020-12. Safe for concurrent use.
type GraphSchemaValidator struct {
	graphSchema *jsonschema.Schema

	// mu guards the cache of compiled initial-state schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewGraphSchemaValidator creates a validator with the graph schema
// pre-compiled.
func NewGraphSchemaValidator() (*GraphSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource("https://graphloom.dev/schemas/graph.json", doc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}

	compiled, err := c.Compile("https://graphloom.dev/schemas/graph.json")
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	return &GraphSchemaValidator{
		graphSchema: compiled,
		cache:       make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateGraph checks a GraphDefinition against the graph JSON Schema.
func (v *GraphSchemaValidator) ValidateGraph(def *schema.GraphDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "graph definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize graph definition").WithCause(err)
	}

	if err := v.graphSchema.Validate(doc); err != nil {
		return toLoomError(err)
	}
	return nil
}

// ValidateInitialState checks an initial state against a graph's declared
// state schema. Declared fields are validated only when present; fields
// outside the declaration pass through.
func (v *GraphSchemaValidator) ValidateInitialState(initial map[string]any, declared map[string]string) error {
	if len(declared) == 0 || initial == nil {
		return nil
	}

	compiled, err := v.getOrCompile(declared)
	if err != nil {
		return err
	}

	doc, err := toJSONValue(initial)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize initial state").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toLoomError(err)
	}
	return nil
}

// getOrCompile builds a JSON Schema from a declared type map and caches
// the compiled result keyed by the generated document.
func (v *GraphSchemaValidator) getOrCompile(declared map[string]string) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(declared))
	for field, typeName := range declared {
		jsType, ok := stateTypeSchemas[typeName]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDefinition,
				"unknown state schema type %q for field %q", typeName, field)
		}
		properties[field] = map[string]any{"type": jsType}
	}
	generated, err := json.Marshal(map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
	})
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "build state schema").WithCause(err)
	}
	key := string(generated)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "unmarshal state schema").WithCause(err)
	}

	// Unique URL per cached schema to avoid compiler resource collisions.
	url := fmt.Sprintf("loom://state-schema/%d", len(v.cache))
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "add state schema resource").WithCause(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "compile state schema").WithCause(err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding so numbers
// become json.Number, as the jsonschema library expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toLoomError converts a jsonschema.ValidationError into a structured
// Error with the leaf violations listed in the details.
func toLoomError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	msg := violations[0]
	if len(violations) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(violations))
	}
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
