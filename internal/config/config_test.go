package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.Pricing.StateBackend)
	assert.Equal(t, 5, cfg.Pricing.MaxConflictRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.Pricing.RetryBackoff)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.NeedsPostgres())
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VALET_HTTP_ADDR", ":9090")
	t.Setenv("VALET_PRICING_STATE_BACKEND", "redis")
	t.Setenv("VALET_PRICING_AUDIT_BACKEND", "postgres")
	t.Setenv("VALET_PRICING_RETRY_BACKOFF", "20ms")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.NeedsRedis())
	assert.True(t, cfg.NeedsPostgres())
	assert.Equal(t, 20*time.Millisecond, cfg.Pricing.RetryBackoff)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pricing:
  config_backend: postgres
  max_conflict_retries: 9
log:
  format: console
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Pricing.ConfigBackend)
	assert.Equal(t, 9, cfg.Pricing.MaxConflictRetries)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VALET_PRICING_STATE_BACKEND", "etcd")
	_, err := Load(New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing.state_backend")
}
