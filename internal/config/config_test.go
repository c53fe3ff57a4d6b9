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

func TestDefaultConfig_MatchesServiceDefaults(t *testing.T) {
	cfg := DefaultConfig()
	svc := cfg.Service()

	assert.Equal(t, 100, svc.RateCapacity)
	assert.Equal(t, time.Minute, svc.RefillPeriod)
	assert.Equal(t, 50, svc.DefaultPageSize)
	assert.True(t, svc.DefaultExpanded)
	assert.False(t, cfg.Metrics)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARBOR_CONFIG", "")
	t.Setenv("ARBOR_RATE_CAPACITY", "7")
	t.Setenv("ARBOR_REFILL_PERIOD", "30s")
	t.Setenv("ARBOR_DEFAULT_EXPANDED", "false")
	t.Setenv("ARBOR_DB_PATH", "/tmp/x.db")
	t.Setenv("ARBOR_METRICS", "true")
	t.Setenv("ARBOR_LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.RateCapacity)
	assert.Equal(t, 30*time.Second, cfg.RefillPeriod)
	assert.False(t, cfg.DefaultExpanded)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidOverridesIgnored(t *testing.T) {
	t.Setenv("ARBOR_CONFIG", "")
	t.Setenv("ARBOR_RATE_CAPACITY", "lots")
	t.Setenv("ARBOR_PAGE_SIZE", "-3")
	t.Setenv("ARBOR_IDEMPOTENCY_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.RateCapacity)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10*time.Minute, cfg.IdempotencyTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_capacity: 9\nrefill_period: 2m\nmax_page_size: 20\nlog_level: debug\n"), 0o600))
	t.Setenv("ARBOR_CONFIG", path)
	t.Setenv("ARBOR_MAX_PAGE_SIZE", "40")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.RateCapacity)
	assert.Equal(t, 2*time.Minute, cfg.RefillPeriod)
	assert.Equal(t, 40, cfg.MaxPageSize)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 50, cfg.PageSize)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("ARBOR_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "reading config")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_capacity: [1, 2\n"), 0o600))
	t.Setenv("ARBOR_CONFIG", path)

	_, err := Load()
	assert.ErrorContains(t, err, "parsing config")
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "info"

	cfg.Logger(&buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.Logger(&buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
