package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n8n-mcp-bridge/internal/logging"
	"n8n-mcp-bridge/internal/registry"
	"n8n-mcp-bridge/pkg/models"
)

type backendCall struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// fakeBackend plays one scripted n8n instance and records what it served.
type fakeBackend struct {
	status   int
	response string
	calls    []backendCall
}

func newFakeBackend(t *testing.T, status int, response string) (*fakeBackend, string) {
	t.Helper()
	fake := &fakeBackend{status: status, response: response}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.calls = append(fake.calls, backendCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fake.status)
		_, _ = w.Write([]byte(fake.response))
	}))
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func newTestServer(instances ...models.Instance) *Server {
	logger := logging.NewLogger()
	return NewServer(registry.New(instances, logger), logger)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultText extracts the single text payload every tool call must produce.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results must be text content")
	return text.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	return payload
}

func TestDispatchUnknownTool(t *testing.T) {
	s := newTestServer()

	result, err := s.dispatch("does-not-exist")(context.Background(), callRequest("does-not-exist", nil))
	require.NoError(t, err, "errors must never escape the dispatch boundary")
	assert.True(t, result.IsError)
	assert.Equal(t, map[string]interface{}{"error": "Unknown tool: does-not-exist"}, resultJSON(t, result))
}

func TestInstanceNotFoundListsAvailable(t *testing.T) {
	s := newTestServer(
		models.Instance{Name: "prod", URL: "http://prod.invalid"},
		models.Instance{Name: "dev", URL: "http://dev.invalid"},
	)

	result, err := s.dispatch("get-workflow")(context.Background(), callRequest("get-workflow", map[string]interface{}{
		"instance":   "staging",
		"workflowId": "w1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	payload := resultJSON(t, result)
	assert.Contains(t, payload["error"], `"staging"`)
	assert.Contains(t, payload["error"], "prod, dev")
}

func TestInstanceNotFoundNoneConfigured(t *testing.T) {
	s := newTestServer()

	result, err := s.dispatch("list-workflows")(context.Background(), callRequest("list-workflows", map[string]interface{}{
		"instance": "prod",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultJSON(t, result)["error"], "none")
}

func TestMissingRequiredArgument(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("get-workflow")(context.Background(), callRequest("get-workflow", map[string]interface{}{
		"instance": "prod",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultJSON(t, result)["error"], "workflowId")
	assert.Empty(t, fake.calls, "no backend call may happen on a validation failure")
}

func TestListWorkflowsRoutesToRequestedInstanceOnly(t *testing.T) {
	prod, prodURL := newFakeBackend(t, http.StatusOK, `{"data":[]}`)
	dev, devURL := newFakeBackend(t, http.StatusOK, `{"data":[{"id":"w1","name":"Dev Flow","active":false}]}`)
	s := newTestServer(
		models.Instance{Name: "prod", URL: prodURL, APIKey: "pk"},
		models.Instance{Name: "dev", URL: devURL, APIKey: "dk"},
	)

	result, err := s.dispatch("list-workflows")(context.Background(), callRequest("list-workflows", map[string]interface{}{
		"instance": "dev",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Empty(t, prod.calls, "the prod backend must never be called")
	require.Len(t, dev.calls, 1)

	payload := resultJSON(t, result)
	assert.Equal(t, "dev", payload["instance"])
	assert.EqualValues(t, 1, payload["count"])
}

func TestListWorkflowsDefaultsAndFilters(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"data":[]}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	_, err := s.dispatch("list-workflows")(context.Background(), callRequest("list-workflows", map[string]interface{}{
		"instance": "prod",
		"active":   true,
		"tags":     "ops",
	}))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Query, "limit=100", "default limit applies")
	assert.Contains(t, fake.calls[0].Query, "active=true")
	assert.Contains(t, fake.calls[0].Query, "tags=ops")
}

func TestToggleWorkflowActivatePath(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"id":"w1","name":"Flow","active":true}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("toggle-workflow")(context.Background(), callRequest("toggle-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
		"active":     true,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, http.MethodPost, fake.calls[0].Method)
	assert.Equal(t, "/api/v1/workflows/w1/activate", fake.calls[0].Path)
	assert.Contains(t, resultJSON(t, result)["message"], "activated")
}

func TestToggleWorkflowDeactivatePath(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"id":"w1","name":"Flow","active":false}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("toggle-workflow")(context.Background(), callRequest("toggle-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
		"active":     false,
	}))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "/api/v1/workflows/w1/deactivate", fake.calls[0].Path)
	assert.Contains(t, resultJSON(t, result)["message"], "deactivated")
}

func TestToggleWorkflowRequiresActive(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("toggle-workflow")(context.Background(), callRequest("toggle-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, fake.calls)
}

func TestSearchWorkflowsFiltersCaseInsensitive(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"data":[
		{"id":"w1","name":"Email Sync","active":true},
		{"id":"w2","name":"daily email digest","active":false},
		{"id":"w3","name":"Orders","active":true}
	]}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("search-workflows")(context.Background(), callRequest("search-workflows", map[string]interface{}{
		"instance": "prod",
		"query":    "EMAIL",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 2, payload["count"])
	matches := payload["matches"].([]interface{})
	require.Len(t, matches, 2)
	assert.Equal(t, "Email Sync", matches[0].(map[string]interface{})["name"])
	assert.Equal(t, "daily email digest", matches[1].(map[string]interface{})["name"])

	// One backend call of the fixed search page size; matching is local.
	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Query, "limit=100")
}

func TestUpdateWorkflowForwardsOnlyProvidedFields(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"id":"w1","name":"Renamed","active":false}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("update-workflow")(context.Background(), callRequest("update-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
		"name":       "Renamed",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, http.MethodPut, fake.calls[0].Method)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.calls[0].Body, &sent))
	assert.Equal(t, map[string]interface{}{"name": "Renamed"}, sent,
		"absent fields must not be forwarded or cleared")
}

func TestUpdateWorkflowRejectsEmptyPatch(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("update-workflow")(context.Background(), callRequest("update-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, fake.calls)
}

func TestCreateWorkflowFillsRequiredDefaults(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"id":"w9","name":"New Flow","active":false}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("create-workflow")(context.Background(), callRequest("create-workflow", map[string]interface{}{
		"instance": "prod",
		"name":     "New Flow",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.calls[0].Body, &sent))
	assert.Equal(t, "New Flow", sent["name"])
	assert.Equal(t, []interface{}{}, sent["nodes"])
	assert.Equal(t, map[string]interface{}{}, sent["connections"])
	assert.Equal(t, map[string]interface{}{}, sent["settings"])
}

func TestBackendErrorBecomesEnvelope(t *testing.T) {
	_, url := newFakeBackend(t, http.StatusInternalServerError, `{"message":"something exploded"}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("get-workflow")(context.Background(), callRequest("get-workflow", map[string]interface{}{
		"instance":   "prod",
		"workflowId": "w1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, map[string]interface{}{"error": "something exploded"}, resultJSON(t, result))
}

func TestListInstances(t *testing.T) {
	s := newTestServer(
		models.Instance{Name: "prod", URL: "https://prod.example.com", APIKey: "very-secret"},
		models.Instance{Name: "dev", URL: "https://dev.example.com", APIKey: "also-secret"},
	)

	result, err := s.dispatch("list-instances")(context.Background(), callRequest("list-instances", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 2, payload["count"])
	assert.NotContains(t, resultText(t, result), "very-secret", "API keys must not leak into tool output")
}

func TestListExecutionsInvalidStatus(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"data":[]}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("list-executions")(context.Background(), callRequest("list-executions", map[string]interface{}{
		"instance": "prod",
		"status":   "finished",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultJSON(t, result)["error"], "running, success, error, waiting, canceled")
	assert.Empty(t, fake.calls)
}

func TestListExecutionsDefaultLimit(t *testing.T) {
	fake, url := newFakeBackend(t, http.StatusOK, `{"data":[{"id":7,"workflowId":"w1","status":"success"}]}`)
	s := newTestServer(models.Instance{Name: "prod", URL: url})

	result, err := s.dispatch("list-executions")(context.Background(), callRequest("list-executions", map[string]interface{}{
		"instance": "prod",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Query, "limit=20")

	payload := resultJSON(t, result)
	executions := payload["executions"].([]interface{})
	require.Len(t, executions, 1)
	assert.Equal(t, "7", executions[0].(map[string]interface{})["id"])
}

func TestNewMCPServerRegistersAllTools(t *testing.T) {
	s := newTestServer()
	srv := s.NewMCPServer()
	require.NotNil(t, srv)
	assert.Len(t, toolDefinitions(), 11)
	for _, tool := range toolDefinitions() {
		_, ok := s.handlers[tool.Name]
		assert.True(t, ok, "tool %s has no handler", tool.Name)
	}
}
