package validation

import (
	"fmt"

	"github.com/graphloom/loom/pkg/schema"
)

// validateGraphShape checks graph-level properties: a unique entry point
// and reachability. Cycles are allowed (the engine prunes them per path),
// but unreachable nodes get a warning since they can never execute.
func validateGraphShape(def *schema.GraphDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	entry, err := def.EntryNode()
	if err != nil {
		result.AddError("/", schema.CodeOf(err), err.Error())
		return result
	}

	reachable := map[string]bool{entry.Name: true}
	frontier := []string{entry.Name}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		var successors []string
		for _, edge := range def.Edges {
			if edge.From == current {
				successors = append(successors, edge.To)
			}
		}
		if node := def.FindNode(current); node != nil {
			successors = append(successors, node.Nodes...)
		}

		for _, next := range successors {
			if !reachable[next] {
				reachable[next] = true
				frontier = append(frontier, next)
			}
		}
	}

	for i := range def.Nodes {
		name := def.Nodes[i].Name
		if !reachable[name] {
			result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeDefinition,
				fmt.Sprintf("node %q is unreachable from the entry point", name))
		}
	}

	return result
}
