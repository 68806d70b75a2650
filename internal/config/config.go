// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided
// via CLI flags or environment variables.
type Config struct {
	// Server
	Host string `json:"host,omitempty"` // Bind address for the HTTP server
	Port int    `json:"port,omitempty"` // Port for the HTTP server

	// Backends
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key

	// Ingestion
	UseBrowser        bool `json:"use_browser,omitempty"`         // Use headless browser for SPA sites
	FetchTimeoutSecs  int  `json:"fetch_timeout_secs,omitempty"`  // Per-attempt fetch timeout
	IngestTimeoutSecs int  `json:"ingest_timeout_secs,omitempty"` // End-to-end ingestion deadline

	// Generation
	GenerateTimeoutSecs int `json:"generate_timeout_secs,omitempty"` // Per-attempt LLM generation timeout

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.FetchTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'fetch_timeout_secs' must be non-negative")
	}
	if c.IngestTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'ingest_timeout_secs' must be non-negative")
	}
	if c.GenerateTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'generate_timeout_secs' must be non-negative")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Host == "" {
		result.Host = defaults.Host
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.FetchTimeoutSecs == 0 {
		result.FetchTimeoutSecs = defaults.FetchTimeoutSecs
	}
	if result.IngestTimeoutSecs == 0 {
		result.IngestTimeoutSecs = defaults.IngestTimeoutSecs
	}
	if result.GenerateTimeoutSecs == 0 {
		result.GenerateTimeoutSecs = defaults.GenerateTimeoutSecs
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
