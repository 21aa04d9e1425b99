// Package config provides configuration management for the OpenMem MCP
// adapter. Settings come from environment variables with the MEMOS_ prefix,
// optionally seeded from a YAML config file; the environment always wins.
//
// The resulting Config is built once at startup, never mutated afterwards,
// and passed explicitly into the MCP server — handlers never reach into the
// environment themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/memtensor/openmem-mcp/internal/identity"
)

// DefaultBaseURL is the production OpenMem API endpoint.
const DefaultBaseURL = "https://memos.memtensor.cn/api/openmem/v1"

// Config holds all settings for the adapter.
//
// APIKey and UserID are required for every tool call but deliberately not
// checked at load time: a missing credential surfaces as an in-band error on
// each invocation, never as a startup failure, so an MCP client always gets
// a useful message instead of a dead server.
type Config struct {
	// APIKey authenticates against the OpenMem API (MEMOS_API_KEY).
	APIKey string `yaml:"api_key"`
	// UserID is the stable, opaque identity memories are stored under
	// (MEMOS_USER_ID). Must stay constant for one person across sessions.
	UserID string `yaml:"user_id"`
	// BaseURL is the OpenMem API endpoint (MEMOS_BASE_URL).
	BaseURL string `yaml:"base_url"`
	// Channel tags the calling surface (MEMOS_CHANNEL). Normalized to
	// upper-case at load time and checked against the allow-list per call.
	Channel string `yaml:"channel"`
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the optional YAML config file at path, applies environment
// overrides, and returns the merged Config. A missing file is not an error;
// a malformed one is. Pass an empty path to skip the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{
		BaseURL: DefaultBaseURL,
		Channel: identity.DefaultChannel,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Env-only operation is the common case for MCP servers.
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &ConfigError{Message: "failed to parse " + path + ": " + err.Error()}
			}
		}
	}

	// Environment overrides file values; file values override defaults.
	cfg.APIKey = getEnv("MEMOS_API_KEY", cfg.APIKey)
	cfg.UserID = getEnv("MEMOS_USER_ID", cfg.UserID)
	cfg.BaseURL = getEnv("MEMOS_BASE_URL", cfg.BaseURL)
	cfg.Channel = getEnv("MEMOS_CHANNEL", cfg.Channel)

	// The api_key field may reference the environment (api_key: ${MY_KEY})
	// so the secret never sits in the file itself.
	cfg.APIKey = expandEnvVars(cfg.APIKey)

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Channel = identity.NormalizeChannel(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = identity.DefaultChannel
	}

	return cfg, nil
}

// Validate checks the per-call preconditions shared by every tool handler:
// credentials present and channel allow-listed. It returns a *ConfigError
// naming the offending variable so callers can surface it verbatim.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Message: "MEMOS_API_KEY is not set; export it or add api_key to the config file"}
	}
	if c.UserID == "" {
		return &ConfigError{Message: "MEMOS_USER_ID is not set; export it or add user_id to the config file"}
	}
	if !identity.IsKnownChannel(c.Channel) {
		return &ConfigError{Message: fmt.Sprintf("unknown channel %q (known channels: %s)",
			c.Channel, strings.Join(identity.KnownChannels(), ", "))}
	}
	return nil
}

// DefaultPath returns the conventional config file location
// (~/.openmem-mcp/config.yaml), or an empty string when the home directory
// cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".openmem-mcp", "config.yaml")
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
