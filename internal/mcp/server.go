// Package mcp exposes the n8n management tools over the Model Context
// Protocol and owns the transport session layer.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"n8n-mcp-bridge/internal/logging"
	"n8n-mcp-bridge/internal/n8n"
	"n8n-mcp-bridge/internal/registry"
)

// Server identity reported to MCP clients and on the HTTP surface.
const (
	ServerName    = "n8n-mcp-bridge"
	ServerVersion = "1.1.0"
)

// searchPageSize bounds search-workflows: matching happens client-side over
// a single page of this size, so results are complete only up to it.
const searchPageSize = 100

// Server validates and routes tool calls to the right n8n instance. One
// Server serves the whole process; protocol servers built by NewMCPServer
// (one per session) all dispatch into it.
type Server struct {
	registry *registry.Registry
	logger   *logging.Logger
	handlers map[string]server.ToolHandlerFunc
}

// NewServer creates a Server over the given instance registry.
func NewServer(reg *registry.Registry, logger *logging.Logger) *Server {
	s := &Server{
		registry: reg,
		logger:   logger,
	}
	s.handlers = map[string]server.ToolHandlerFunc{
		"list-instances":   s.handleListInstances,
		"list-workflows":   s.handleListWorkflows,
		"search-workflows": s.handleSearchWorkflows,
		"get-workflow":     s.handleGetWorkflow,
		"create-workflow":  s.handleCreateWorkflow,
		"update-workflow":  s.handleUpdateWorkflow,
		"delete-workflow":  s.handleDeleteWorkflow,
		"toggle-workflow":  s.handleToggleWorkflow,
		"execute-workflow": s.handleExecuteWorkflow,
		"list-executions":  s.handleListExecutions,
		"get-execution":    s.handleGetExecution,
	}
	return s
}

// NewMCPServer builds a fresh protocol server with every tool registered.
// The SSE transport calls this once per session, stdio mode once per
// process.
func (s *Server) NewMCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, tool := range toolDefinitions() {
		srv.AddTool(tool, s.dispatch(tool.Name))
	}
	return srv
}

// ServeStdio runs a single protocol server over stdin/stdout for the
// lifetime of the process.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.NewMCPServer())
}

// dispatch wraps the named handler so that every outcome, including a
// handler that was never wired, ends up in the uniform envelope. Errors
// never propagate past this boundary into the transport.
func (s *Server) dispatch(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handler, ok := s.handlers[name]
		if !ok {
			return errorResult(fmt.Sprintf("Unknown tool: %s", name)), nil
		}

		result, err := handler(ctx, request)
		if err != nil {
			s.logger.Debug("tool %s failed: %v", name, err)
			return errorResult(err.Error()), nil
		}
		return result, nil
	}
}

// client resolves the "instance" argument to a backend client.
func (s *Server) client(request mcp.CallToolRequest) (*n8n.Client, error) {
	name, err := request.RequireString("instance")
	if err != nil {
		return nil, err
	}
	inst, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return n8n.NewClient(inst), nil
}

// jsonResult serializes v as the pretty-printed success payload.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult produces the uniform {"error": message} payload with the
// error flag set.
func errorResult(message string) *mcp.CallToolResult {
	data, err := json.MarshalIndent(map[string]string{"error": message}, "", "  ")
	if err != nil {
		// A plain string map cannot fail to marshal; keep the message anyway.
		return mcp.NewToolResultError(message)
	}
	return mcp.NewToolResultError(string(data))
}

func toolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("list-instances",
			mcp.WithDescription("List all configured n8n instances"),
		),
		mcp.NewTool("list-workflows",
			mcp.WithDescription("List workflows on an n8n instance"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithBoolean("active", mcp.Description("Only return workflows with this active state")),
			mcp.WithString("tags", mcp.Description("Comma-separated tag names to filter by")),
			mcp.WithNumber("limit", mcp.DefaultNumber(100), mcp.Description("Maximum number of workflows to return")),
		),
		mcp.NewTool("search-workflows",
			mcp.WithDescription("Search workflows by name (case-insensitive substring match)"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Substring to look for in workflow names")),
			mcp.WithBoolean("active", mcp.Description("Only search workflows with this active state")),
		),
		mcp.NewTool("get-workflow",
			mcp.WithDescription("Get a workflow by id"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Workflow id")),
		),
		mcp.NewTool("create-workflow",
			mcp.WithDescription("Create a new workflow"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
			mcp.WithArray("nodes", mcp.Description("Workflow node definitions")),
			mcp.WithObject("connections", mcp.Description("Node connection map")),
			mcp.WithObject("settings", mcp.Description("Workflow settings")),
			mcp.WithBoolean("active", mcp.DefaultBool(false), mcp.Description("Desired active state")),
		),
		mcp.NewTool("update-workflow",
			mcp.WithDescription("Update a workflow; only the provided fields are changed"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Workflow id")),
			mcp.WithString("name", mcp.Description("New workflow name")),
			mcp.WithArray("nodes", mcp.Description("Replacement node definitions")),
			mcp.WithObject("connections", mcp.Description("Replacement connection map")),
			mcp.WithObject("settings", mcp.Description("Replacement settings")),
			mcp.WithBoolean("active", mcp.Description("Desired active state")),
		),
		mcp.NewTool("delete-workflow",
			mcp.WithDescription("Delete a workflow"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Workflow id")),
		),
		mcp.NewTool("toggle-workflow",
			mcp.WithDescription("Activate or deactivate a workflow"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Workflow id")),
			mcp.WithBoolean("active", mcp.Required(), mcp.Description("true to activate, false to deactivate")),
		),
		mcp.NewTool("execute-workflow",
			mcp.WithDescription("Trigger a run of a workflow"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Workflow id")),
		),
		mcp.NewTool("list-executions",
			mcp.WithDescription("List workflow executions on an n8n instance"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("workflowId", mcp.Description("Only list executions of this workflow")),
			mcp.WithString("status",
				mcp.Description("Only list executions with this status"),
				mcp.Enum("running", "success", "error", "waiting", "canceled"),
			),
			mcp.WithNumber("limit", mcp.DefaultNumber(20), mcp.Description("Maximum number of executions to return")),
		),
		mcp.NewTool("get-execution",
			mcp.WithDescription("Get an execution by id"),
			mcp.WithString("instance", mcp.Required(), mcp.Description("Name of the configured n8n instance")),
			mcp.WithString("executionId", mcp.Required(), mcp.Description("Execution id")),
		),
	}
}
