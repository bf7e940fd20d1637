package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := loadConfig()
	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15, cfg.DefaultMaxIters)
	assert.True(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.SeedBuiltinGraphs)
}

func TestLoadConfigSettingsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".loom")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	settings := `{"listen_addr": ":9999", "log_level": "debug", "default_max_iterations": 30}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(settings), 0o644))

	cfg := loadConfig()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.DefaultMaxIters)
}

func TestLoadConfigEnvOverridesSettings(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".loom")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"listen_addr": ":9999"}`), 0o644))

	t.Setenv("LOOM_LISTEN_ADDR", ":4201")
	t.Setenv("LOOM_DB_PATH", "/tmp/other.db")
	t.Setenv("LOOM_DEFAULT_MAX_ITERATIONS", "42")
	t.Setenv("LOOM_SCHEDULER_ENABLED", "false")

	cfg := loadConfig()
	assert.Equal(t, ":4201", cfg.ListenAddr)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, 42, cfg.DefaultMaxIters)
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoadConfigClampsLoopBound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Setenv("LOOM_DEFAULT_MAX_ITERATIONS", "0")
	assert.Equal(t, 15, loadConfig().DefaultMaxIters)

	t.Setenv("LOOM_DEFAULT_MAX_ITERATIONS", "500")
	assert.Equal(t, 15, loadConfig().DefaultMaxIters)

	t.Setenv("LOOM_DEFAULT_MAX_ITERATIONS", "100")
	assert.Equal(t, 100, loadConfig().DefaultMaxIters)
}
