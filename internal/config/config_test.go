package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/sessionproxy/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_ParsesCommentedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessionproxy.conf")
	contents := `{
		// websocket listen address
		"listen": ":7070",
		"log_level": "debug",
		"idle_unload_after_sec": 120
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.IdleUnloadAfterSec)
	// Not overridden by the file: stays at the default.
	assert.Equal(t, ":6061", cfg.MetricsListen)
}

func TestParseFlags_OverridesConfig(t *testing.T) {
	cfg, err := config.ParseFlags(config.Default(), []string{"-listen", ":9090", "-log_level", "warn"})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "warn", cfg.LogLevel)
}
