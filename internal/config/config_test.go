package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want 5432", cfg.Postgres.Port)
	}
	if cfg.Postgres.SSLMode != "disable" {
		t.Errorf("Postgres.SSLMode = %q, want disable", cfg.Postgres.SSLMode)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want 6379", cfg.Redis.Port)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if !cfg.OpenAI.EnableFallback {
		t.Error("OpenAI fallback should default to enabled")
	}
	if cfg.Cluster.SuggestionThreshold != 0.5 {
		t.Errorf("SuggestionThreshold = %v, want 0.5", cfg.Cluster.SuggestionThreshold)
	}
	if cfg.Cluster.GroupThreshold != 0.6 {
		t.Errorf("GroupThreshold = %v, want 0.6", cfg.Cluster.GroupThreshold)
	}
	if cfg.Cluster.MinGroupSize != 3 {
		t.Errorf("MinGroupSize = %d, want 3", cfg.Cluster.MinGroupSize)
	}
	if cfg.Cluster.CompareToGroup {
		t.Error("CompareToGroup should default to seed comparison")
	}
	if cfg.Cluster.TagCacheTTL != time.Hour {
		t.Errorf("TagCacheTTL = %v, want 1h", cfg.Cluster.TagCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CLUSTER_GROUP_THRESHOLD", "0.75")
	t.Setenv("CLUSTER_MIN_GROUP_SIZE", "4")
	t.Setenv("CLUSTER_COMPARE_TO_GROUP", "true")
	t.Setenv("TAG_CACHE_TTL_MINUTES", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.GroupThreshold != 0.75 {
		t.Errorf("GroupThreshold = %v, want 0.75", cfg.Cluster.GroupThreshold)
	}
	if cfg.Cluster.MinGroupSize != 4 {
		t.Errorf("MinGroupSize = %d, want 4", cfg.Cluster.MinGroupSize)
	}
	if !cfg.Cluster.CompareToGroup {
		t.Error("CompareToGroup override ignored")
	}
	if cfg.Cluster.TagCacheTTL != 15*time.Minute {
		t.Errorf("TagCacheTTL = %v, want 15m", cfg.Cluster.TagCacheTTL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Gemini:   GeminiConfig{APIKey: "key"},
			Postgres: PostgresConfig{Host: "localhost", Database: "db"},
			Cluster:  ClusterConfig{GroupThreshold: 0.6, MinGroupSize: 3},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing gemini key", func(c *Config) { c.Gemini.APIKey = "" }},
		{"missing postgres host", func(c *Config) { c.Postgres.Host = "" }},
		{"missing database", func(c *Config) { c.Postgres.Database = "" }},
		{"group size too small", func(c *Config) { c.Cluster.MinGroupSize = 1 }},
		{"threshold zero", func(c *Config) { c.Cluster.GroupThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.Cluster.GroupThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
