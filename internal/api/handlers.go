// Package api contains the plain HTTP handlers served alongside the MCP
// transport in sse mode.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"n8n-mcp-bridge/internal/mcp"
	"n8n-mcp-bridge/internal/registry"
)

// Handler serves the identity and liveness endpoints.
type Handler struct {
	registry *registry.Registry
}

// NewHandler creates a Handler over the instance registry.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

// Root returns the server identity and the configured instances. API keys
// never appear here.
// (GET /)
func (h *Handler) Root(c echo.Context) error {
	type instanceInfo struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	instances := make([]instanceInfo, 0, h.registry.Count())
	for _, inst := range h.registry.Instances() {
		instances = append(instances, instanceInfo{Name: inst.Name, URL: inst.URL})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":      mcp.ServerName,
		"version":   mcp.ServerVersion,
		"mode":      "sse",
		"instances": instances,
		"endpoints": map[string]string{
			"sse":      "/sse",
			"messages": "/messages",
		},
	})
}

// Health is the liveness probe.
// (GET /health)
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"instances": h.registry.Count(),
	})
}
