// Package n8n is a client for the n8n public REST API, bound to a single
// configured instance.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"n8n-mcp-bridge/pkg/models"
)

// apiBasePath is the versioned prefix of the n8n public API.
const apiBasePath = "/api/v1"

// Client performs authenticated calls against one n8n instance. It is
// stateless beyond the bound instance record and safe for concurrent use.
type Client struct {
	instance models.Instance
	http     *http.Client
}

// NewClient creates a Client for the given instance. The transport carries
// a socket-level timeout; no retries are attempted.
func NewClient(instance models.Instance) *Client {
	return &Client{
		instance: instance,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Instance returns the instance record this client is bound to.
func (c *Client) Instance() models.Instance {
	return c.instance
}

// request performs one HTTP round trip and returns the raw response body.
// Non-2xx responses become an *APIError; a 204 returns a nil body.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.instance.URL+apiBasePath+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-N8N-API-KEY", c.instance.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to instance %q failed: %w", c.instance.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// ListWorkflowsOptions are the optional query parameters of GET /workflows.
type ListWorkflowsOptions struct {
	Active *bool
	Tags   string
	Limit  int
	Cursor string
}

// ListWorkflows returns one page of workflows.
func (c *Client) ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*models.WorkflowList, error) {
	q := url.Values{}
	if opts.Active != nil {
		q.Set("active", strconv.FormatBool(*opts.Active))
	}
	if opts.Tags != "" {
		q.Set("tags", opts.Tags)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/workflows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list models.WorkflowList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode workflow list: %w", err)
	}
	return &list, nil
}

// GetWorkflow fetches a single workflow by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// CreateWorkflow creates a workflow from the given fields.
func (c *Client) CreateWorkflow(ctx context.Context, fields map[string]interface{}) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodPost, "/workflows", fields)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// UpdateWorkflow applies a partial update; only the fields present in patch
// are sent, so absent fields are left untouched on the backend.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, patch map[string]interface{}) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodPut, "/workflows/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// DeleteWorkflow deletes a workflow. n8n echoes the deleted workflow back;
// the result is nil when the backend answers 204 instead.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodDelete, "/workflows/"+url.PathEscape(id), nil)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// ActivateWorkflow turns a workflow on through the dedicated action
// endpoint. Activation state is never toggled through UpdateWorkflow.
func (c *Client) ActivateWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/activate", nil)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// DeactivateWorkflow turns a workflow off through the dedicated action
// endpoint.
func (c *Client) DeactivateWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := c.request(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/deactivate", nil)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(data)
}

// ExecuteWorkflow triggers a run of the workflow. The response shape varies
// across n8n versions, so it is passed through undecoded.
func (c *Client) ExecuteWorkflow(ctx context.Context, id string) (map[string]interface{}, error) {
	data, err := c.request(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/run", nil)
	if err != nil || data == nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode execution result: %w", err)
	}
	return result, nil
}

// ListExecutionsOptions are the optional query parameters of GET /executions.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     string
	Limit      int
	Cursor     string
}

// ListExecutions returns one page of executions.
func (c *Client) ListExecutions(ctx context.Context, opts ListExecutionsOptions) (*models.ExecutionList, error) {
	q := url.Values{}
	if opts.WorkflowID != "" {
		q.Set("workflowId", opts.WorkflowID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/executions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list models.ExecutionList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode execution list: %w", err)
	}
	return &list, nil
}

// GetExecution fetches a single execution by id.
func (c *Client) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	data, err := c.request(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeExecution(data)
}

// DeleteExecution deletes an execution record.
func (c *Client) DeleteExecution(ctx context.Context, id string) (*models.Execution, error) {
	data, err := c.request(ctx, http.MethodDelete, "/executions/"+url.PathEscape(id), nil)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeExecution(data)
}

func decodeWorkflow(data json.RawMessage) (*models.Workflow, error) {
	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	return &wf, nil
}

func decodeExecution(data json.RawMessage) (*models.Execution, error) {
	var exec models.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to decode execution: %w", err)
	}
	return &exec, nil
}
