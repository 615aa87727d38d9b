package n8n

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from an n8n instance. Message is the
// backend-supplied error message when one could be parsed, otherwise a
// generic status line.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError extracts the "message" field n8n puts in its error bodies,
// falling back to the HTTP status line when the body is empty or not JSON.
func newAPIError(statusCode int, body []byte) *APIError {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return &APIError{StatusCode: statusCode, Message: parsed.Message}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode)),
	}
}
