package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TRANSFORMAR_API_BASE", "TRANSFORMAR_DB", "TRANSFORMAR_LOG_FILE", "TRANSFORMAR_LOG_LEVEL",
		"TRANSFORMAR_LIST_LIMIT", "TRANSFORMAR_HTTP_TIMEOUT", "TRANSFORMAR_EXPORT_DIR",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBase)
	assert.Equal(t, 10, cfg.ListLimit)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base: https://api.example.com/
list_limit: 25
http_timeout: 30s
log_level: debug
export_dir: /tmp/out
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIBase)
	assert.Equal(t, 25, cfg.ListLimit)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/out", cfg.ExportDir)

	t.Setenv("TRANSFORMAR_API_BASE", "http://other:9000")
	t.Setenv("TRANSFORMAR_LIST_LIMIT", "5")
	t.Setenv("TRANSFORMAR_HTTP_TIMEOUT", "2m")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://other:9000", cfg.APIBase)
	assert.Equal(t, 5, cfg.ListLimit)
	assert.Equal(t, 2*time.Minute, cfg.HTTPTimeout)
}

func TestLoadExplicitMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSFORMAR_LIST_LIMIT", "many")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("TRANSFORMAR_LIST_LIMIT", "")
	t.Setenv("TRANSFORMAR_HTTP_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}

func TestFanoutLevels(t *testing.T) {
	var console, file bytes.Buffer
	logger := fanout(&console, &file, slog.LevelInfo)

	logger.Debug("backend request", "path", "/templates")
	logger.Info("submitting", "source", "text")

	assert.NotContains(t, console.String(), "backend request")
	assert.Contains(t, console.String(), "submitting")
	assert.NotContains(t, console.String(), "time=")
	assert.Contains(t, file.String(), `"msg":"backend request"`)
	assert.Contains(t, file.String(), `"source":"text"`)
}

func TestNewLoggerCreatesFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "transformar.log")
	logger, cleanup := NewLogger(LogOptions{Console: &console, Level: slog.LevelWarn, File: path})
	logger.Debug("detail", "k", "v")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"detail"`)
	assert.Empty(t, console.String())
}

func TestNewLoggerWithoutFile(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup := NewLogger(LogOptions{Console: &console, Level: slog.LevelInfo})
	logger.Info("ready")
	require.NoError(t, cleanup())
	assert.Contains(t, console.String(), "msg=ready")
}
