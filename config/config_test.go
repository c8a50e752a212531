package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graphflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Store.Driver != "memory" {
		t.Errorf("expected driver 'memory', got %q", cfg.Store.Driver)
	}
	if cfg.Engine.MaxIterations != 25 {
		t.Errorf("expected 25 max iterations, got %d", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.MaxToolWorkers != 4 {
		t.Errorf("expected 4 tool workers, got %d", cfg.Engine.MaxToolWorkers)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Logging.Level)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: anthropic
  name: claude-sonnet-4-20250514
  api_key_env: ANTHROPIC_API_KEY
store:
  driver: sqlite
  path: conversations.db
engine:
  max_iterations: 10
  instructions: You are a helpful assistant.
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Model.Provider)
	}
	if cfg.Model.APIKeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("unexpected api_key_env: %q", cfg.Model.APIKeyEnv)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != "conversations.db" {
		t.Errorf("unexpected store path: %q", cfg.Store.Path)
	}
	if cfg.Engine.MaxIterations != 10 {
		t.Errorf("expected 10 max iterations, got %d", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.Instructions != "You are a helpful assistant." {
		t.Errorf("unexpected instructions: %q", cfg.Engine.Instructions)
	}

	// Sections absent from the file keep their defaults.
	if cfg.Engine.MaxToolWorkers != 4 {
		t.Errorf("expected default 4 tool workers, got %d", cfg.Engine.MaxToolWorkers)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Logging.Level)
	}
}

func TestLoadExpandsEnvInPath(t *testing.T) {
	t.Setenv("GRAPHFLOW_TEST_DIR", "/data/flows")

	path := writeConfig(t, `
store:
  driver: sqlite
  path: ${GRAPHFLOW_TEST_DIR}/chat.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.Path != "/data/flows/chat.db" {
		t.Errorf("expected expanded path, got %q", cfg.Store.Path)
	}
}

func TestTimeoutsConvertToDurations(t *testing.T) {
	path := writeConfig(t, `
engine:
  agent_timeout_sec: 30
  tool_timeout_sec: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Engine.AgentTimeout(); got != 30*time.Second {
		t.Errorf("expected 30s agent timeout, got %v", got)
	}
	if got := cfg.Engine.ToolTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s tool timeout, got %v", got)
	}

	// Zero means unlimited.
	if got := Default().Engine.AgentTimeout(); got != 0 {
		t.Errorf("expected zero default timeout, got %v", got)
	}
}

func TestAPIKeyResolvedFromEnv(t *testing.T) {
	t.Setenv("GRAPHFLOW_TEST_KEY", "sk-test-123")

	m := ModelConfig{APIKeyEnv: "GRAPHFLOW_TEST_KEY"}
	if got := m.APIKey(); got != "sk-test-123" {
		t.Errorf("expected key from env, got %q", got)
	}

	if got := (ModelConfig{}).APIKey(); got != "" {
		t.Errorf("expected empty key without api_key_env, got %q", got)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "llamacpp" }, "unknown model provider"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "unknown store driver"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.Path = "" }, "requires a path"},
		{"zero iterations", func(c *Config) { c.Engine.MaxIterations = 0 }, "max_iterations"},
		{"zero workers", func(c *Config) { c.Engine.MaxToolWorkers = 0 }, "max_tool_workers"},
		{"negative timeout", func(c *Config) { c.Engine.AgentTimeoutSec = -1 }, "must not be negative"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "unknown log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [not a mapping")

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: redis
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("unexpected error: %v", err)
	}
}
