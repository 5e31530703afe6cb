// Package config holds runtime configuration for the server.
// Defaults are compiled in; environment variables and an optional YAML
// file override them. Nothing here is set at import time - callers build
// a Config explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that YAML can decode: either a Go duration
// string ("10s", "1m30s") or a bare number of seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Environment variables honoured by Load.
const (
	EnvElasticsearchURL      = "ELASTICSEARCH_URL"
	EnvElasticsearchUser     = "ELASTICSEARCH_USER"
	EnvElasticsearchPassword = "ELASTICSEARCH_PASSWORD"
	EnvCacheDir              = "MCP_NIXOS_CACHE_DIR"
)

// Public credentials for the search.nixos.org backend. They are baked
// into the upstream frontend and are not secret.
const (
	defaultElasticsearchURL      = "https://search.nixos.org/backend"
	defaultElasticsearchUser     = "aWVSALXpZv"
	defaultElasticsearchPassword = "X8gPHnzL52wFEekuxsfQ9cSh"
)

// Config is the full runtime configuration.
type Config struct {
	// ElasticsearchURL is the base URL of the NixOS search backend.
	ElasticsearchURL      string `yaml:"elasticsearch_url"`
	ElasticsearchUser     string `yaml:"elasticsearch_user"`
	ElasticsearchPassword string `yaml:"elasticsearch_password"`

	// CacheDir is where HTML bodies, serialised indices and debug logs live.
	CacheDir string `yaml:"cache_dir"`

	// MemoryTTL bounds the in-memory response cache.
	MemoryTTL        Duration `yaml:"memory_ttl"`
	MaxMemoryEntries int      `yaml:"max_memory_entries"`

	// FilesystemTTL bounds the on-disk HTML and index caches.
	FilesystemTTL Duration `yaml:"filesystem_ttl"`

	// HTTP fabric tuning.
	MaxRetries     int      `yaml:"max_retries"`
	RetryDelay     Duration `yaml:"retry_delay"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	// DocsReadTimeout applies to the Home Manager and Darwin manual pages,
	// which are large single documents and slower to serve.
	DocsReadTimeout Duration `yaml:"docs_read_timeout"`

	// Channel is the NixOS channel selected at startup.
	Channel string `yaml:"channel"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		ElasticsearchURL:      defaultElasticsearchURL,
		ElasticsearchUser:     defaultElasticsearchUser,
		ElasticsearchPassword: defaultElasticsearchPassword,
		CacheDir:              "",
		MemoryTTL:             Duration(600 * time.Second),
		MaxMemoryEntries:      500,
		FilesystemTTL:         Duration(86400 * time.Second),
		MaxRetries:            3,
		RetryDelay:            Duration(1 * time.Second),
		ConnectTimeout:        Duration(3 * time.Second),
		ReadTimeout:           Duration(10 * time.Second),
		DocsReadTimeout:       Duration(15 * time.Second),
		Channel:               "unstable",
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment overrides, in that precedence order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.CacheDir == "" {
		cfg.CacheDir = ResolveCacheDir()
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvElasticsearchURL); v != "" {
		c.ElasticsearchURL = v
	}
	if v := os.Getenv(EnvElasticsearchUser); v != "" {
		c.ElasticsearchUser = v
	}
	if v := os.Getenv(EnvElasticsearchPassword); v != "" {
		c.ElasticsearchPassword = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
}

// ResolveCacheDir picks the cache directory: environment override, then
// the OS user cache dir, then a repo-local fallback.
func ResolveCacheDir() string {
	if v := os.Getenv(EnvCacheDir); v != "" {
		return v
	}
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, "mcp-nixos")
	}
	return ".mcp-nixos-cache"
}
