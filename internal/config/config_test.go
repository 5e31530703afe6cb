package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://search.nixos.org/backend", cfg.ElasticsearchURL)
	assert.Equal(t, 600*time.Second, cfg.MemoryTTL.Std())
	assert.Equal(t, 500, cfg.MaxMemoryEntries)
	assert.Equal(t, 86400*time.Second, cfg.FilesystemTTL.Std())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay.Std())
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout.Std())
	assert.Equal(t, 15*time.Second, cfg.DocsReadTimeout.Std())
	assert.Equal(t, "unstable", cfg.Channel)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
elasticsearch_url: http://localhost:9200
channel: "24.11"
max_retries: 1
read_timeout: 2s
memory_ttl: 300
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "24.11", cfg.Channel)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout.Std())
	// Bare numbers are seconds.
	assert.Equal(t, 300*time.Second, cfg.MemoryTTL.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, 500, cfg.MaxMemoryEntries)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elasticsearch_url: http://from-yaml:9200\n"), 0o644))

	t.Setenv(EnvElasticsearchURL, "http://from-env:9200")
	t.Setenv(EnvElasticsearchUser, "envuser")
	t.Setenv(EnvElasticsearchPassword, "envpass")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "envuser", cfg.ElasticsearchUser)
	assert.Equal(t, "envpass", cfg.ElasticsearchPassword)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().ElasticsearchURL, cfg.ElasticsearchURL)
	assert.NotEmpty(t, cfg.CacheDir)
}

func TestResolveCacheDir(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/custom-cache")
	assert.Equal(t, "/tmp/custom-cache", ResolveCacheDir())

	t.Setenv(EnvCacheDir, "")
	dir := ResolveCacheDir()
	assert.NotEmpty(t, dir)
	assert.Contains(t, dir, "mcp-nixos")
}
