package models

// Workflow is an n8n workflow as returned by the public API. The node and
// connection payloads are backend-owned and treated as opaque; timestamps
// stay in their wire form.
type Workflow struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Active      bool                     `json:"active"`
	CreatedAt   string                   `json:"createdAt,omitempty"`
	UpdatedAt   string                   `json:"updatedAt,omitempty"`
	Tags        []Tag                    `json:"tags,omitempty"`
	Nodes       []map[string]interface{} `json:"nodes,omitempty"`
	Connections map[string]interface{}   `json:"connections,omitempty"`
	Settings    map[string]interface{}   `json:"settings,omitempty"`
}

// Tag is an n8n workflow tag.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// WorkflowList is the paginated envelope n8n wraps list responses in.
type WorkflowList struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
