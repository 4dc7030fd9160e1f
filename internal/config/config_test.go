package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Qdrant.URL != "http://localhost:6333" {
		t.Errorf("unexpected default qdrant url: %s", cfg.Qdrant.URL)
	}
	if cfg.Search.DefaultNResults != 10 {
		t.Errorf("expected default n_results 10, got %d", cfg.Search.DefaultNResults)
	}
	if !cfg.Search.EnableReranking {
		t.Error("expected reranking enabled by default")
	}
	if cfg.Search.RerankCandidates != 50 {
		t.Errorf("expected default rerank candidates 50, got %d", cfg.Search.RerankCandidates)
	}
	if cfg.Search.StatsWindow != 500 {
		t.Errorf("expected default stats window 500, got %d", cfg.Search.StatsWindow)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("expected memory bus by default, got %s", cfg.Bus.Type)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9090
search:
  default_n_results: 5
  enable_reranking: true
  rerank_candidates: 25
  rerank_fanout: 4
  stats_window: 200
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090 from file, got %d", cfg.Port)
	}
	if cfg.Search.DefaultNResults != 5 {
		t.Errorf("expected n_results 5 from file, got %d", cfg.Search.DefaultNResults)
	}
	if cfg.Search.StatsWindow != 200 {
		t.Errorf("expected stats window 200 from file, got %d", cfg.Search.StatsWindow)
	}

	// Values the file does not mention keep their defaults.
	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Host)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SIGHT_PORT", "7070")
	t.Setenv("QDRANT_URL", "http://qdrant:6333")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Port)
	}
	if cfg.Qdrant.URL != "http://qdrant:6333" {
		t.Errorf("expected env qdrant url, got %s", cfg.Qdrant.URL)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"zero visual dim", func(c *Config) { c.Embed.VisualDim = 0 }, "visual_dim"},
		{"zero text dim", func(c *Config) { c.Embed.TextDim = 0 }, "text_dim"},
		{"stats window too small", func(c *Config) { c.Search.StatsWindow = 50 }, "stats_window"},
		{"stats window too large", func(c *Config) { c.Search.StatsWindow = 5000 }, "stats_window"},
		{"bad bus type", func(c *Config) { c.Bus.Type = "carrier-pigeon" }, "bus type"},
		{"kafka without brokers", func(c *Config) { c.Bus.Type = "kafka" }, "kafka_brokers"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 9000}
	if got := cfg.Address(); got != "127.0.0.1:9000" {
		t.Errorf("expected 127.0.0.1:9000, got %s", got)
	}
}
