// # internal/core/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chisel/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chisel.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, filepath.IsAbs(cfg.Paths.WorkspaceRoot))
	assert.Contains(t, cfg.Paths.StorePath, filepath.Join(".chisel", "graph.db"))
	assert.Equal(t, 400*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 60*time.Second, cfg.Validation.Timeout)
	assert.Equal(t, "off", cfg.Validation.AnalyzerMode)
	assert.Contains(t, cfg.Exclude.Dirs, ".git")
	assert.Equal(t, float64(10), cfg.MCP.RateLimit)
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
version = 1

[paths]
workspace_root = "`+root+`"

[validation]
analyzer_mode = "strict"

[validation.compilers]
go = ["go", "vet", "{dir}"]

[watch]
debounce = 250000000

[mcp]
enabled = true
rate_limit = 5.0
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Paths.WorkspaceRoot)
	assert.Equal(t, "strict", cfg.Validation.AnalyzerMode)
	assert.Equal(t, []string{"go", "vet", "{dir}"}, cfg.Validation.Compilers["go"])
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, float64(5), cfg.MCP.RateLimit)
}

func TestLoadRejectsBadAnalyzerMode(t *testing.T) {
	path := writeConfig(t, `
[validation]
analyzer_mode = "lenient"
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer_mode")
}

func TestLoadRejectsMissingWorkspace(t *testing.T) {
	path := writeConfig(t, `
[paths]
workspace_root = "/nonexistent/chisel-workspace"
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsEmptyCompiler(t *testing.T) {
	path := writeConfig(t, `
[validation.compilers]
go = []
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilers.go")
}
