package validation

import (
	"fmt"

	"github.com/graphloom/loom/pkg/schema"
)

// ToolLookup answers whether a tool name is registered. Satisfied by
// *tools.Registry. May be nil to skip tool existence checks.
type ToolLookup interface {
	Exists(name string) bool
}

// validateSemantic performs reference and variant analysis on the graph:
// unique node names, tool bindings, loop shape, edge endpoints, and the
// condition union rules.
func validateSemantic(def *schema.GraphDefinition, lookup ToolLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	names := make(map[string]*schema.NodeDefinition, len(def.Nodes))
	for i := range def.Nodes {
		node := &def.Nodes[i]
		path := fmt.Sprintf("nodes[%d]", i)
		if _, dup := names[node.Name]; dup {
			result.AddError(path+".name", schema.ErrCodeDefinition,
				fmt.Sprintf("duplicate node name %q", node.Name))
			continue
		}
		names[node.Name] = node
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		path := fmt.Sprintf("nodes[%d]", i)

		switch node.Kind() {
		case schema.NodeTypeNormal:
			validateNormalNode(node, path, lookup, result)
		case schema.NodeTypeLoop:
			validateLoopNode(node, path, names, result)
		default:
			result.AddError(path+".type", schema.ErrCodeDefinition,
				fmt.Sprintf("unknown node type %q", node.Type))
		}
	}

	for i, edge := range def.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if _, ok := names[edge.From]; !ok {
			result.AddError(path+".from_node", schema.ErrCodeDefinition,
				fmt.Sprintf("references undeclared node %q", edge.From))
		}
		if _, ok := names[edge.To]; !ok {
			result.AddError(path+".to_node", schema.ErrCodeDefinition,
				fmt.Sprintf("references undeclared node %q", edge.To))
		}
		if edge.Condition != nil {
			if err := edge.Condition.Validate(); err != nil {
				result.AddError(path+".condition", schema.CodeOf(err), err.Error())
			}
		}
	}

	return result
}

func validateNormalNode(node *schema.NodeDefinition, path string, lookup ToolLookup, result *schema.ValidationResult) {
	if node.ToolName == "" {
		result.AddError(path+".tool_name", schema.ErrCodeDefinition,
			fmt.Sprintf("normal node %q requires a tool_name", node.Name))
		return
	}
	// Tools may be registered after the graph is stored, so an unknown
	// name is a warning at definition time and NotFound at run time.
	if lookup != nil && !lookup.Exists(node.ToolName) {
		result.AddWarning(path+".tool_name", schema.ErrCodeNotFound,
			fmt.Sprintf("tool %q is not currently registered", node.ToolName))
	}
	if len(node.Nodes) > 0 {
		result.AddError(path+".nodes", schema.ErrCodeDefinition,
			fmt.Sprintf("normal node %q must not declare loop children", node.Name))
	}
	if node.LoopCondition != nil {
		result.AddError(path+".loop_condition", schema.ErrCodeDefinition,
			fmt.Sprintf("normal node %q must not declare a loop_condition", node.Name))
	}
}

func validateLoopNode(node *schema.NodeDefinition, path string, names map[string]*schema.NodeDefinition, result *schema.ValidationResult) {
	if node.ToolName != "" {
		result.AddError(path+".tool_name", schema.ErrCodeDefinition,
			fmt.Sprintf("loop node %q must not bind a tool_name", node.Name))
	}
	if len(node.Nodes) == 0 {
		result.AddError(path+".nodes", schema.ErrCodeDefinition,
			fmt.Sprintf("loop node %q requires at least one child node", node.Name))
	}
	for j, childName := range node.Nodes {
		child, ok := names[childName]
		if !ok {
			result.AddError(fmt.Sprintf("%s.nodes[%d]", path, j), schema.ErrCodeDefinition,
				fmt.Sprintf("loop child %q is not declared", childName))
			continue
		}
		if child.Kind() != schema.NodeTypeNormal {
			result.AddError(fmt.Sprintf("%s.nodes[%d]", path, j), schema.ErrCodeDefinition,
				fmt.Sprintf("loop child %q must be a normal node, nested loops are not supported", childName))
		}
	}

	if node.LoopCondition == nil {
		result.AddError(path+".loop_condition", schema.ErrCodeDefinition,
			fmt.Sprintf("loop node %q requires a loop_condition", node.Name))
	} else if err := node.LoopCondition.Validate(); err != nil {
		result.AddError(path+".loop_condition", schema.CodeOf(err), err.Error())
	}
}
