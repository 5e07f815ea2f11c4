package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.Loop.MaxIterations != 20 {
		t.Errorf("expected default max_iterations 20, got %d", cfg.Loop.MaxIterations)
	}
	if cfg.Loop.SafetyLimit != 10 {
		t.Errorf("expected default safety_limit 10, got %d", cfg.Loop.SafetyLimit)
	}
	if cfg.Audit.Driver != "memory" {
		t.Errorf("expected default audit driver memory, got %s", cfg.Audit.Driver)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected default exporter stdout, got %s", cfg.Telemetry.Exporter)
	}
}

func TestLoadFromFile(t *testing.T) {
	doc := `
llm:
  model: "llama3.1"
loop:
  max_iterations: 5
audit:
  driver: sqlite
  dsn: "file:audit.db"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "llama3.1" {
		t.Errorf("expected model llama3.1, got %s", cfg.LLM.Model)
	}
	if cfg.Loop.MaxIterations != 5 {
		t.Errorf("expected max_iterations 5, got %d", cfg.Loop.MaxIterations)
	}
	if cfg.Audit.Driver != "sqlite" || cfg.Audit.DSN != "file:audit.db" {
		t.Errorf("unexpected audit config: %+v", cfg.Audit)
	}
	// Untouched keys keep their defaults.
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider default to survive, got %s", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	doc := `
llm:
  model: "llama3.1"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("THYRA_LLM_MODEL", "qwen3:32b")
	defer os.Unsetenv("THYRA_LLM_MODEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "qwen3:32b" {
		t.Errorf("env should override the file, got %s", cfg.LLM.Model)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing config file should fail")
	}
}
