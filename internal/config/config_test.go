package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.SearchTopK != 5 || cfg.ScoreThreshold != 0.2 {
		t.Errorf("search defaults = %d/%v, want 5/0.2", cfg.SearchTopK, cfg.ScoreThreshold)
	}
	if cfg.SummaryMaxRetries != 3 {
		t.Errorf("SummaryMaxRetries = %d, want 3", cfg.SummaryMaxRetries)
	}
	if cfg.AgentMaxIterations != 6 {
		t.Errorf("AgentMaxIterations = %d, want 6", cfg.AgentMaxIterations)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunk_size: 500\nscore_threshold: 0.5\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "750")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 750 {
		t.Errorf("ChunkSize = %d, want env override 750", cfg.ChunkSize)
	}
	if cfg.ScoreThreshold != 0.5 {
		t.Errorf("ScoreThreshold = %v, want file value 0.5", cfg.ScoreThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestUnreadableConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing CONFIG_FILE")
	}
}

func TestInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want default 1000", cfg.ChunkSize)
	}
}
