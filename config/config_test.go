package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 5000, cfg.Producer.SliceDurationMs)
	assert.Equal(t, 3, cfg.Consumer.PrefetchConcurrency)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test-config.yaml")

	content := `
environment: staging
producer:
  sliceDurationMs: 2000
  compressionLevel: 9
consumer:
  prefetchConcurrency: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 2000, cfg.Producer.SliceDurationMs)
	assert.Equal(t, 9, cfg.Producer.CompressionLevel)
	assert.Equal(t, 5, cfg.Consumer.PrefetchConcurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Fields absent from the file keep their default.
	assert.Equal(t, 10, cfg.Producer.ServerCacheSize)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "roundtrip.yaml")

	cfg := Default()
	cfg.Producer.SliceDurationMs = 7500
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7500, loaded.Producer.SliceDurationMs)
}
