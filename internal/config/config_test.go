package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.TLS.Enable)
}

func TestLoadModeFromEnv(t *testing.T) {
	t.Setenv("MCP_MODE", "sse")
	t.Setenv("PORT", "3333")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeSSE, cfg.Mode)
	assert.Equal(t, 3333, cfg.Port)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("MCP_MODE", "websocket")

	_, _, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MCP_MODE=sse\n"), 0o600))
	// godotenv writes into the process environment; undo it afterwards.
	t.Cleanup(func() { _ = os.Unsetenv("MCP_MODE") })

	cfg, _, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, ModeSSE, cfg.Mode)
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.Error(t, err)
}

func TestViperHandleSeesInstanceEnv(t *testing.T) {
	t.Setenv("N8N_INSTANCE_1_NAME", "prod")

	_, v, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prod", v.GetString("N8N_INSTANCE_1_NAME"))
}
