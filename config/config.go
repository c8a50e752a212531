// Package config loads GraphFlow configuration from YAML files.
//
// Load reads a file over the defaults from Default, so a config file only
// states what differs. API keys never live in the file; the model section
// names an environment variable instead.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of a GraphFlow YAML config file.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig selects the model provider and its sampling settings.
type ModelConfig struct {
	Provider    string   `yaml:"provider"`              // openai, anthropic
	Name        string   `yaml:"name,omitempty"`        // provider model id, e.g. "gpt-4o"
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int64   `yaml:"max_tokens,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"` // environment variable holding the key
	BaseURL     string   `yaml:"base_url,omitempty"`
}

// APIKey resolves the provider credential from the configured environment
// variable.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}

	return os.Getenv(m.APIKeyEnv)
}

// StoreConfig describes the checkpoint backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`         // memory, sqlite
	Path   string `yaml:"path,omitempty"` // sqlite database file
}

// EngineConfig carries the execution loop limits and the system prompt.
type EngineConfig struct {
	MaxIterations   int    `yaml:"max_iterations,omitempty"`
	MaxToolWorkers  int    `yaml:"max_tool_workers,omitempty"`
	AgentTimeoutSec int    `yaml:"agent_timeout_sec,omitempty"`
	ToolTimeoutSec  int    `yaml:"tool_timeout_sec,omitempty"`
	Instructions    string `yaml:"instructions,omitempty"`
}

// AgentTimeout returns the model round trip limit, zero when unlimited.
func (e EngineConfig) AgentTimeout() time.Duration {
	return time.Duration(e.AgentTimeoutSec) * time.Second
}

// ToolTimeout returns the per-tool invocation limit, zero when unlimited.
func (e EngineConfig) ToolTimeout() time.Duration {
	return time.Duration(e.ToolTimeoutSec) * time.Second
}

// LoggingConfig selects log verbosity and output encoding.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// Default returns a fully populated configuration: openai provider,
// in-memory store and the standard engine limits.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Store: StoreConfig{
			Driver: "memory",
			Path:   "chatbot.db",
		},
		Engine: EngineConfig{
			MaxIterations:  25,
			MaxToolWorkers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result. Fields
// absent from the file keep their default values, so partial files are fine.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// ${VAR} references in paths and URLs resolve against the environment.
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	cfg.Model.BaseURL = os.ExpandEnv(cfg.Model.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown model provider %q (supported: openai, anthropic)", c.Model.Provider)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("sqlite store requires a path")
		}
	default:
		return fmt.Errorf("unknown store driver %q (supported: memory, sqlite)", c.Store.Driver)
	}

	if c.Engine.MaxIterations < 1 {
		return fmt.Errorf("engine.max_iterations must be at least 1, got %d", c.Engine.MaxIterations)
	}

	if c.Engine.MaxToolWorkers < 1 {
		return fmt.Errorf("engine.max_tool_workers must be at least 1, got %d", c.Engine.MaxToolWorkers)
	}

	if c.Engine.AgentTimeoutSec < 0 {
		return fmt.Errorf("engine.agent_timeout_sec must not be negative, got %d", c.Engine.AgentTimeoutSec)
	}

	if c.Engine.ToolTimeoutSec < 0 {
		return fmt.Errorf("engine.tool_timeout_sec must not be negative, got %d", c.Engine.ToolTimeoutSec)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q (supported: json, text)", c.Logging.Format)
	}

	return nil
}
