package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/pkg/schema"
)

// handleDefine validates and stores a workflow graph.
func (s *LoomServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}

	defRaw := mcp.ParseStringMap(req, "graph_definition", nil)
	if defRaw == nil {
		return mcp.NewToolResultError("graph_definition is required"), nil
	}

	// Marshal then unmarshal the definition to get a proper GraphDefinition.
	defBytes, marshalErr := json.Marshal(defRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph_definition: %v", marshalErr)), nil
	}
	var def schema.GraphDefinition
	if unmarshalErr := json.Unmarshal(defBytes, &def); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph_definition: %v", unmarshalErr)), nil
	}

	wf, result, createErr := s.launcher.CreateWorkflow(ctx, name, req.GetString("description", ""), def)
	if createErr != nil {
		if result != nil && !result.Valid() {
			return marshalResult(map[string]any{
				"error":  "graph definition is invalid",
				"issues": result.Errors(),
			})
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to create workflow: %v", createErr)), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": wf.ID,
		"name":        wf.Name,
		"warnings":    result.Warnings(),
	})
}

// handleRun launches a run and returns without waiting for completion.
func (s *LoomServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	initial := mcp.ParseStringMap(req, "initial_state", nil)

	run, runErr := s.launcher.StartRun(ctx, workflowID, initial)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start run: %v", runErr)), nil
	}

	return marshalResult(map[string]any{
		"run_id":      run.ID,
		"workflow_id": run.WorkflowID,
		"status":      run.Status,
	})
}

// handleStatus returns the persisted run record, optionally with snapshots.
func (s *LoomServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	run, snaps, statusErr := s.launcher.RunStatus(ctx, runID)
	if statusErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", statusErr)), nil
	}

	out := map[string]any{"run": run}
	if req.GetString("include_snapshots", "false") == "true" {
		out["snapshots"] = snaps
	}
	return marshalResult(out)
}

// handleQuery lists workflows or runs based on filters.
func (s *LoomServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "workflows":
		return s.queryWorkflows(ctx, filter)
	case "runs":
		return s.queryRuns(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *LoomServer) queryWorkflows(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	wf := store.WorkflowFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if name, ok := filter["name"].(string); ok {
		wf.Name = name
	}

	workflows, err := s.store.ListWorkflows(ctx, wf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"workflows": workflows})
}

func (s *LoomServer) queryRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if wfID, ok := filter["workflow_id"].(string); ok {
		rf.WorkflowID = wfID
	}
	if status, ok := filter["status"].(string); ok && status != "" {
		rs := schema.RunStatus(status)
		rf.Status = &rs
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			rf.Since = &t
		}
	}

	runList, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runList})
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
