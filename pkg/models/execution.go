package models

import "encoding/json"

// Execution statuses the n8n API reports.
const (
	ExecutionStatusRunning  = "running"
	ExecutionStatusSuccess  = "success"
	ExecutionStatusError    = "error"
	ExecutionStatusWaiting  = "waiting"
	ExecutionStatusCanceled = "canceled"
)

// ExecutionStatuses lists every valid execution status, in the order the
// n8n API documents them.
var ExecutionStatuses = []string{
	ExecutionStatusRunning,
	ExecutionStatusSuccess,
	ExecutionStatusError,
	ExecutionStatusWaiting,
	ExecutionStatusCanceled,
}

// ValidExecutionStatus reports whether s is a recognized execution status.
func ValidExecutionStatus(s string) bool {
	for _, status := range ExecutionStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Execution is one run of a workflow. n8n serves execution ids as numbers,
// so the id is kept as json.Number and rendered back verbatim.
type Execution struct {
	ID             json.Number            `json:"id"`
	WorkflowID     string                 `json:"workflowId,omitempty"`
	WorkflowName   string                 `json:"workflowName,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Mode           string                 `json:"mode,omitempty"`
	Finished       bool                   `json:"finished"`
	StartedAt      string                 `json:"startedAt,omitempty"`
	StoppedAt      string                 `json:"stoppedAt,omitempty"`
	RetryOf        json.Number            `json:"retryOf,omitempty"`
	RetrySuccessID json.Number            `json:"retrySuccessId,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// ExecutionList is the paginated envelope for execution listings.
type ExecutionList struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}
