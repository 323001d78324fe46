package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("SYNC_BATCH_SIZE", "")
	t.Setenv("DEBUG", "")

	cfg := Load()
	assert.Equal(t, "prod_", cfg.TablePrefix)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, DefaultSyncBatchSize, cfg.SyncBatchSize)
	assert.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("TABLE_PREFIX", "ci_")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("SYNC_CONCURRENCY", "not-a-number")

	cfg := Load()
	assert.Equal(t, "ci_", cfg.TablePrefix)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 25, cfg.SyncBatchSize)
	assert.Equal(t, DefaultSyncConcurrency, cfg.SyncConcurrency)
	assert.True(t, cfg.Debug)
}

func TestSetupLogFile_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"api-2020-01-01T00-00-00.000.log", "api-2020-01-02T00-00-00.000.log", "other.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	f, err := SetupLogFile(dir, 2)
	require.NoError(t, err)
	defer f.Close()

	files, err := filepath.Glob(filepath.Join(dir, "api-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NotContains(t, files, filepath.Join(dir, "api-2020-01-01T00-00-00.000.log"))
	assert.FileExists(t, filepath.Join(dir, "other.log"))
}
