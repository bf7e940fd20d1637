package schema

// GraphDefinition is the JSON-serializable workflow graph format: a set of
// uniquely named nodes connected by optionally conditional edges, with
// exactly one entry node (the node no edge points to).
type GraphDefinition struct {
	Nodes              []NodeDefinition  `json:"nodes"`
	Edges              []EdgeDefinition  `json:"edges"`
	InitialStateSchema map[string]string `json:"initial_state_schema,omitempty"`
}

// NodeType enumerates the kinds of nodes in a graph.
type NodeType string

const (
	NodeTypeNormal NodeType = "normal"
	NodeTypeLoop   NodeType = "loop"
)

// ExhaustionPolicy is the behavior when a loop reaches its iteration bound
// without satisfying its exit condition.
type ExhaustionPolicy string

const (
	ExhaustionFail     ExhaustionPolicy = "fail"
	ExhaustionContinue ExhaustionPolicy = "continue"
)

// NodeDefinition describes a single node in a workflow graph.
// A normal node executes one tool; a loop node repeats an ordered list of
// normal child nodes until its exit condition holds or the bound is reached.
type NodeDefinition struct {
	Name          string           `json:"name"`
	Type          NodeType         `json:"type,omitempty"`           // default: normal
	ToolName      string           `json:"tool_name,omitempty"`      // normal nodes
	Nodes         []string         `json:"nodes,omitempty"`          // loop child node names
	LoopCondition *Condition       `json:"loop_condition,omitempty"` // loop exit condition
	MaxIterations int              `json:"max_iterations,omitempty"` // 0 = engine default
	OnMaxReached  ExhaustionPolicy `json:"on_max_reached,omitempty"` // default: fail
}

// Kind returns the node type, defaulting to normal when unset.
func (n *NodeDefinition) Kind() NodeType {
	if n.Type == "" {
		return NodeTypeNormal
	}
	return n.Type
}

// Exhaustion returns the exhaustion policy, defaulting to fail when unset.
func (n *NodeDefinition) Exhaustion() ExhaustionPolicy {
	if n.OnMaxReached == "" {
		return ExhaustionFail
	}
	return n.OnMaxReached
}

// EdgeDefinition is a directed connection between two nodes, optionally
// gated by a condition evaluated against the run state after the source
// node finishes.
type EdgeDefinition struct {
	From      string     `json:"from_node"`
	To        string     `json:"to_node"`
	Condition *Condition `json:"condition,omitempty"`
}

// FindNode returns the node with the given name, or nil.
func (g *GraphDefinition) FindNode(name string) *NodeDefinition {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

// EntryNode returns the unique node with no incoming edge. Loop child
// nodes are reached through their loop rather than through edges, so when
// several nodes lack incoming edges the loop children among them are not
// entry candidates. Anything other than exactly one candidate is a
// definition error.
func (g *GraphDefinition) EntryNode() (*NodeDefinition, error) {
	targets := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		targets[e.To] = true
	}
	loopChildren := make(map[string]bool)
	for i := range g.Nodes {
		for _, child := range g.Nodes[i].Nodes {
			loopChildren[child] = true
		}
	}

	var candidates []*NodeDefinition
	for i := range g.Nodes {
		if !targets[g.Nodes[i].Name] {
			candidates = append(candidates, &g.Nodes[i])
		}
	}
	if len(candidates) > 1 {
		var external []*NodeDefinition
		for _, c := range candidates {
			if !loopChildren[c.Name] {
				external = append(external, c)
			}
		}
		candidates = external
	}

	switch len(candidates) {
	case 0:
		return nil, NewError(ErrCodeDefinition, "no entry point: every node has an incoming edge")
	case 1:
		return candidates[0], nil
	default:
		return nil, NewErrorf(ErrCodeDefinition,
			"ambiguous entry point: both %q and %q have no incoming edge", candidates[0].Name, candidates[1].Name)
	}
}
