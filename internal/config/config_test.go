package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	contents := `
[store]
path = "/var/lib/astrotask/tasks.db"

[lock]
stale_after = "45s"
retry_budget = "5s"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/astrotask/tasks.db", cfg.Store.Path)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Lock.StaleAfter))
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Lock.RetryBudget))
}

func TestLoadFillsPartialOverrideWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	contents := `
[lock]
stale_after = "10s"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Store.Path, cfg.Store.Path)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Lock.StaleAfter))
	assert.Equal(t, Default().Lock.RetryBudget, cfg.Lock.RetryBudget)
}

func TestLockOptionsConvertsDurations(t *testing.T) {
	cfg := Default()
	opts := cfg.LockOptions()
	assert.Equal(t, time.Duration(cfg.Lock.StaleAfter), opts.StaleAfter)
	assert.Equal(t, time.Duration(cfg.Lock.RetryBudget), opts.RetryBudget)
}
