package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"n8n-mcp-bridge/internal/n8n"
	"n8n-mcp-bridge/pkg/models"
)

// workflowSummary is the instance-scoped projection of a workflow used in
// list and mutation responses.
type workflowSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Active    bool     `json:"active"`
	Tags      []string `json:"tags,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

func summarizeWorkflow(wf models.Workflow) workflowSummary {
	summary := workflowSummary{
		ID:        wf.ID,
		Name:      wf.Name,
		Active:    wf.Active,
		UpdatedAt: wf.UpdatedAt,
	}
	for _, tag := range wf.Tags {
		summary.Tags = append(summary.Tags, tag.Name)
	}
	return summary
}

// executionSummary is the projection used by list-executions.
type executionSummary struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId,omitempty"`
	Status     string `json:"status,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	StoppedAt  string `json:"stoppedAt,omitempty"`
}

func summarizeExecution(exec models.Execution) executionSummary {
	return executionSummary{
		ID:         exec.ID.String(),
		WorkflowID: exec.WorkflowID,
		Status:     exec.Status,
		StartedAt:  exec.StartedAt,
		StoppedAt:  exec.StoppedAt,
	}
}

func (s *Server) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type instanceInfo struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	instances := make([]instanceInfo, 0, s.registry.Count())
	for _, inst := range s.registry.Instances() {
		instances = append(instances, instanceInfo{Name: inst.Name, URL: inst.URL})
	}

	return jsonResult(map[string]interface{}{
		"instances": instances,
		"count":     len(instances),
	})
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}

	opts := n8n.ListWorkflowsOptions{
		Tags:  request.GetString("tags", ""),
		Limit: request.GetInt("limit", 100),
	}
	if raw, ok := request.GetArguments()["active"]; ok {
		active, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("parameter \"active\" must be a boolean")
		}
		opts.Active = &active
	}

	list, err := client.ListWorkflows(ctx, opts)
	if err != nil {
		return nil, err
	}

	workflows := make([]workflowSummary, 0, len(list.Data))
	for _, wf := range list.Data {
		workflows = append(workflows, summarizeWorkflow(wf))
	}

	payload := map[string]interface{}{
		"instance":  client.Instance().Name,
		"workflows": workflows,
		"count":     len(workflows),
	}
	if list.NextCursor != "" {
		payload["nextCursor"] = list.NextCursor
	}
	return jsonResult(payload)
}

func (s *Server) handleSearchWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	query, err := request.RequireString("query")
	if err != nil {
		return nil, err
	}

	// n8n has no server-side name search; fetch one generous page and
	// filter here. Matches beyond the page size are missed.
	opts := n8n.ListWorkflowsOptions{Limit: searchPageSize}
	if raw, ok := request.GetArguments()["active"]; ok {
		active, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("parameter \"active\" must be a boolean")
		}
		opts.Active = &active
	}

	list, err := client.ListWorkflows(ctx, opts)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := make([]workflowSummary, 0)
	for _, wf := range list.Data {
		if strings.Contains(strings.ToLower(wf.Name), needle) {
			matches = append(matches, summarizeWorkflow(wf))
		}
	}

	return jsonResult(map[string]interface{}{
		"instance": client.Instance().Name,
		"query":    query,
		"matches":  matches,
		"count":    len(matches),
	})
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	workflowID, err := request.RequireString("workflowId")
	if err != nil {
		return nil, err
	}

	wf, err := client.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance": client.Instance().Name,
		"workflow": wf,
	})
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	name, err := request.RequireString("name")
	if err != nil {
		return nil, err
	}

	// n8n rejects creates with null nodes/connections/settings, so empty
	// values are supplied for anything the caller left out.
	fields := map[string]interface{}{
		"name":        name,
		"nodes":       []interface{}{},
		"connections": map[string]interface{}{},
		"settings":    map[string]interface{}{},
	}
	args := request.GetArguments()
	for _, key := range []string{"nodes", "connections", "settings", "active"} {
		if value, ok := args[key]; ok {
			fields[key] = value
		}
	}

	wf, err := client.CreateWorkflow(ctx, fields)
	if err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance": client.Instance().Name,
		"workflow": summarizeWorkflow(*wf),
		"message":  fmt.Sprintf("Workflow %q created with id %s", wf.Name, wf.ID),
	})
}

func (s *Server) handleUpdateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	workflowID, err := request.RequireString("workflowId")
	if err != nil {
		return nil, err
	}

	// Partial patch semantics: only arguments the caller actually sent are
	// forwarded, so absent fields are never cleared.
	patch := map[string]interface{}{}
	args := request.GetArguments()
	for _, key := range []string{"name", "nodes", "connections", "settings", "active"} {
		if value, ok := args[key]; ok {
			patch[key] = value
		}
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("no fields to update: provide at least one of name, nodes, connections, settings, active")
	}

	wf, err := client.UpdateWorkflow(ctx, workflowID, patch)
	if err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance": client.Instance().Name,
		"workflow": summarizeWorkflow(*wf),
		"message":  fmt.Sprintf("Workflow %s updated", workflowID),
	})
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	workflowID, err := request.RequireString("workflowId")
	if err != nil {
		return nil, err
	}

	if _, err := client.DeleteWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance":   client.Instance().Name,
		"workflowId": workflowID,
		"message":    fmt.Sprintf("Workflow %s deleted", workflowID),
	})
}

func (s *Server) handleToggleWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	workflowID, err := request.RequireString("workflowId")
	if err != nil {
		return nil, err
	}
	active, err := request.RequireBool("active")
	if err != nil {
		return nil, err
	}

	var wf *models.Workflow
	verb := "deactivated"
	if active {
		wf, err = client.ActivateWorkflow(ctx, workflowID)
		verb = "activated"
	} else {
		wf, err = client.DeactivateWorkflow(ctx, workflowID)
	}
	if err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance": client.Instance().Name,
		"workflow": summarizeWorkflow(*wf),
		"message":  fmt.Sprintf("Workflow %s %s", workflowID, verb),
	})
}

func (s *Server) handleExecuteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	workflowID, err := request.RequireString("workflowId")
	if err != nil {
		return nil, err
	}

	result, err := client.ExecuteWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"instance":   client.Instance().Name,
		"workflowId": workflowID,
		"message":    fmt.Sprintf("Execution of workflow %s started", workflowID),
	}
	if result != nil {
		payload["result"] = result
	}
	return jsonResult(payload)
}

func (s *Server) handleListExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}

	opts := n8n.ListExecutionsOptions{
		WorkflowID: request.GetString("workflowId", ""),
		Status:     request.GetString("status", ""),
		Limit:      request.GetInt("limit", 20),
	}
	if opts.Status != "" && !models.ValidExecutionStatus(opts.Status) {
		return nil, fmt.Errorf("invalid status %q (valid: %s)", opts.Status, strings.Join(models.ExecutionStatuses, ", "))
	}

	list, err := client.ListExecutions(ctx, opts)
	if err != nil {
		return nil, err
	}

	executions := make([]executionSummary, 0, len(list.Data))
	for _, exec := range list.Data {
		executions = append(executions, summarizeExecution(exec))
	}

	payload := map[string]interface{}{
		"instance":   client.Instance().Name,
		"executions": executions,
		"count":      len(executions),
	}
	if list.NextCursor != "" {
		payload["nextCursor"] = list.NextCursor
	}
	return jsonResult(payload)
}

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(request)
	if err != nil {
		return nil, err
	}
	executionID, err := request.RequireString("executionId")
	if err != nil {
		return nil, err
	}

	exec, err := client.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return jsonResult(map[string]interface{}{
		"instance":  client.Instance().Name,
		"execution": exec,
	})
}
