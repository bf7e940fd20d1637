// Package mcp exposes the workflow engine to agents over the Model Context
// Protocol.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/graphloom/loom/internal/runs"
	"github.com/graphloom/loom/internal/store"
)

// LoomServerDeps holds the dependencies for creating a LoomServer.
type LoomServerDeps struct {
	Launcher *runs.Launcher
	Store    store.Store
	Logger   *slog.Logger
}

// LoomServer wraps an MCP server with loom-specific tool handlers.
type LoomServer struct {
	launcher  *runs.Launcher
	store     store.Store
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewLoomServer creates a new LoomServer with all 4 tools registered.
func NewLoomServer(deps LoomServerDeps) *LoomServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &LoomServer{
		launcher: deps.Launcher,
		store:    deps.Store,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"loom",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Loom is a graph-based workflow execution engine. Use loom.define to register a workflow graph, loom.run to launch a run, loom.status to check run progress and state, and loom.query to list workflows and runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *LoomServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *LoomServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 4 registered MCP tools as ServerTool entries.
func (s *LoomServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func defineTool() mcp.Tool {
	return mcp.NewTool("loom.define",
		mcp.WithDescription("Register a workflow graph definition"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithObject("graph_definition", mcp.Required(), mcp.Description("Graph definition object (nodes, edges, initial_state_schema)")),
		mcp.WithString("description", mcp.Description("Workflow description")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("loom.run",
		mcp.WithDescription("Launch a run of a registered workflow; returns the run ID immediately"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to run")),
		mcp.WithObject("initial_state", mcp.Description("Initial state for the run")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("loom.status",
		mcp.WithDescription("Get run status, current state, step logs and snapshot history"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run to query")),
		mcp.WithString("include_snapshots", mcp.Description("Include the full state snapshot history (default: false)")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("loom.query",
		mcp.WithDescription("Query workflows or runs"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("workflows", "runs"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (name, workflow_id, status, since, limit)")),
	)
}
