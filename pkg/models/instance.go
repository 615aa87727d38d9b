package models

// Instance is one independently addressable n8n deployment with its own
// base URL and API key. Built once at startup, immutable afterwards.
type Instance struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}
