// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultIndexURL is the published search index of the Coluna.jl docs
	DefaultIndexURL = "https://atoptima.github.io/Coluna.jl/dev/search_index.js"

	// DefaultSiteURL is the documentation root record locations resolve against
	DefaultSiteURL = "https://atoptima.github.io/Coluna.jl/dev/"

	// ConfigFileName is looked up inside the data directory
	ConfigFileName = "config.yaml"

	homeDirName = ".documenter-mcp"
)

// Config holds all server settings.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	IndexURL        string `yaml:"index_url"`
	SiteURL         string `yaml:"site_url"`
	CacheTTL        string `yaml:"cache_ttl"`
	DownloadTimeout string `yaml:"download_timeout"`
	MaxResults      int    `yaml:"max_results"`
	WatchFile       string `yaml:"watch_file"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults. DataDir is left empty and
// resolved by Load.
func DefaultConfig() *Config {
	return &Config{
		IndexURL:        DefaultIndexURL,
		SiteURL:         DefaultSiteURL,
		CacheTTL:        "168h",
		DownloadTimeout: "30s",
		MaxResults:      10,
		LogLevel:        "info",
	}
}

// Load reads the config file at path (if any), applies environment
// overrides and resolves the data directory. An empty path looks for
// DOCSEARCH_CONFIG and then <data_dir>/config.yaml. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("DOCSEARCH_CONFIG")
	}
	if path == "" {
		dataDir := os.Getenv("DOCSEARCH_DATA_DIR")
		if dataDir == "" {
			dataDir = ResolveDataDir()
		}
		path = filepath.Join(dataDir, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.DataDir == "" {
		cfg.DataDir = ResolveDataDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("DOCSEARCH_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if url := os.Getenv("DOCSEARCH_INDEX_URL"); url != "" {
		c.IndexURL = url
	}
	if url := os.Getenv("DOCSEARCH_SITE_URL"); url != "" {
		c.SiteURL = url
	}
	if ttl := os.Getenv("DOCSEARCH_CACHE_TTL"); ttl != "" {
		c.CacheTTL = ttl
	}
	if file := os.Getenv("DOCSEARCH_WATCH_FILE"); file != "" {
		c.WatchFile = file
	}
	if level := os.Getenv("DOCSEARCH_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if n, err := strconv.Atoi(os.Getenv("DOCSEARCH_MAX_RESULTS")); err == nil && n > 0 {
		c.MaxResults = n
	}
}

// Validate checks the settings that can be wrong in a config file.
func (c *Config) Validate() error {
	if c.IndexURL == "" {
		return fmt.Errorf("index_url is required")
	}
	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl %q: %w", c.CacheTTL, err)
	}
	if _, err := time.ParseDuration(c.DownloadTimeout); err != nil {
		return fmt.Errorf("invalid download_timeout %q: %w", c.DownloadTimeout, err)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	return nil
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetDownloadTimeout returns the download timeout as a duration.
func (c *Config) GetDownloadTimeout() time.Duration {
	d, err := time.ParseDuration(c.DownloadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ResolveDataDir picks the data directory:
// ~/.documenter-mcp (created if needed), else ../../../data next to the
// executable if it exists, else ./data.
func ResolveDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userDataDir := filepath.Join(homeDir, homeDirName)
		if info, err := os.Stat(userDataDir); err == nil && info.IsDir() {
			return userDataDir
		}
		if err := os.MkdirAll(userDataDir, 0755); err == nil {
			return userDataDir
		}
	}

	// Binary at: plugin/servers/documenter-mcp-server/documenter-mcp-server
	// Data at:   plugin/data/
	if execPath, err := os.Executable(); err == nil {
		relativeDataDir := filepath.Join(filepath.Dir(execPath), "..", "..", "..", "data")
		if info, err := os.Stat(relativeDataDir); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(relativeDataDir); err == nil {
				return abs
			}
		}
	}

	return filepath.Join(".", "data")
}
