package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("CODESCORE_HOME", filepath.Join(dir, ".codescore"))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Analysis.TaskTimeout != 8*time.Second {
		t.Errorf("task timeout = %v, want 8s", cfg.Analysis.TaskTimeout)
	}
	if cfg.Analysis.StageTimeout != 15*time.Second {
		t.Errorf("stage timeout = %v, want 15s", cfg.Analysis.StageTimeout)
	}
	if cfg.Analysis.ContextLines != 3 {
		t.Errorf("context lines = %d, want 3", cfg.Analysis.ContextLines)
	}
	if cfg.Scoring.Weights.Security != 0.35 {
		t.Errorf("security weight = %v, want 0.35", cfg.Scoring.Weights.Security)
	}
	if cfg.Security.StaticAnalysis.Binary != "semgrep" {
		t.Errorf("static analysis binary = %q", cfg.Security.StaticAnalysis.Binary)
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	dir := isolateHome(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `
analysis:
  task_timeout: 2s
scoring:
  weights:
    style: 0.5
complexity:
  max_cyclomatic: 7
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Analysis.TaskTimeout != 2*time.Second {
		t.Errorf("task timeout = %v, want 2s", cfg.Analysis.TaskTimeout)
	}
	if cfg.Analysis.StageTimeout != 15*time.Second {
		t.Errorf("unset keys should keep defaults, stage timeout = %v", cfg.Analysis.StageTimeout)
	}
	if cfg.Scoring.Weights.Style != 0.5 {
		t.Errorf("style weight = %v", cfg.Scoring.Weights.Style)
	}
	if cfg.Complexity.MaxCyclomatic != 7 {
		t.Errorf("max cyclomatic = %d", cfg.Complexity.MaxCyclomatic)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("CODESCORE_SECURITY_VULNDB_OFFLINE_ONLY", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if !cfg.Security.VulnDB.OfflineOnly {
		t.Error("env var should enable offline_only")
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	isolateHome(t)
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero task timeout", func(c *Config) { c.Analysis.TaskTimeout = 0 }},
		{"negative stage timeout", func(c *Config) { c.Analysis.StageTimeout = -time.Second }},
		{"negative context", func(c *Config) { c.Analysis.ContextLines = -1 }},
		{"negative weight", func(c *Config) { c.Scoring.Weights.Bug = -0.1 }},
		{"gate above one", func(c *Config) { c.Gate.MinScore = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestGetHomeHonorsEnv(t *testing.T) {
	t.Setenv("CODESCORE_HOME", "/tmp/cs-home")
	home, err := GetHome()
	if err != nil || home != "/tmp/cs-home" {
		t.Errorf("GetHome() = %q, %v", home, err)
	}
	dir, _ := GetConfigDir()
	if dir != filepath.Join("/tmp/cs-home", "config") {
		t.Errorf("GetConfigDir() = %q", dir)
	}
}
