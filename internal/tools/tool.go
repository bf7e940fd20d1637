// Package tools defines the executable units a workflow node invokes and
// the registry that resolves them by name.
package tools

import (
	"context"
)

// Tool is an executable unit of work bound to a workflow node. It receives
// the full run state and returns the full next state; the engine replaces
// the state wholesale with the returned map.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, state map[string]any) (map[string]any, error)
}

// ToolInfo is a summary of a registered tool for listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, state map[string]any) (map[string]any, error)
}

func (t *ToolFunc) Name() string        { return t.ToolName }
func (t *ToolFunc) Description() string { return t.Desc }

func (t *ToolFunc) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	return t.Fn(ctx, state)
}

// NewTool builds a ToolFunc with the given name, description and body.
func NewTool(name, desc string, fn func(ctx context.Context, state map[string]any) (map[string]any, error)) *ToolFunc {
	return &ToolFunc{ToolName: name, Desc: desc, Fn: fn}
}
