package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	want := DefaultEngineConfig()
	if cfg.ExecutionStrategy != want.ExecutionStrategy {
		t.Errorf("ExecutionStrategy = %s, want %s", cfg.ExecutionStrategy, want.ExecutionStrategy)
	}
	if cfg.ConflictStrategy != want.ConflictStrategy {
		t.Errorf("ConflictStrategy = %s, want %s", cfg.ConflictStrategy, want.ConflictStrategy)
	}
	if cfg.MaxParallelRules != want.MaxParallelRules {
		t.Errorf("MaxParallelRules = %d, want %d", cfg.MaxParallelRules, want.MaxParallelRules)
	}
	if cfg.OrchestrationTimeout != want.OrchestrationTimeout {
		t.Errorf("OrchestrationTimeout = %v, want %v", cfg.OrchestrationTimeout, want.OrchestrationTimeout)
	}
	if cfg.CacheTTL != want.CacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, want.CacheTTL)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`engine:
  execution_strategy: SEQUENTIAL
  conflict_strategy: FIRST_MATCH
  max_parallel_rules: 4
  orchestration_timeout: 10s
  cache_ttl: 1m
  cache_max_entries: 500
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.ExecutionStrategy != types.StrategySequential {
		t.Errorf("ExecutionStrategy = %s, want SEQUENTIAL", cfg.ExecutionStrategy)
	}
	if cfg.ConflictStrategy != types.FirstMatch {
		t.Errorf("ConflictStrategy = %s, want FIRST_MATCH", cfg.ConflictStrategy)
	}
	if cfg.MaxParallelRules != 4 {
		t.Errorf("MaxParallelRules = %d, want 4", cfg.MaxParallelRules)
	}
	if cfg.OrchestrationTimeout != 10*time.Second {
		t.Errorf("OrchestrationTimeout = %v, want 10s", cfg.OrchestrationTimeout)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 500 {
		t.Errorf("CacheMaxEntries = %d, want 500", cfg.CacheMaxEntries)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Errorf("LoadConfig() error = nil, want failure")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *EngineConfig { return DefaultEngineConfig() }

	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *EngineConfig) {}, false},
		{"zero cache ttl disables caching", func(c *EngineConfig) { c.CacheTTL = 0 }, false},
		{"unknown execution strategy", func(c *EngineConfig) { c.ExecutionStrategy = "EAGER" }, true},
		{"unknown conflict strategy", func(c *EngineConfig) { c.ConflictStrategy = "COIN_FLIP" }, true},
		{"zero parallel rules", func(c *EngineConfig) { c.MaxParallelRules = 0 }, true},
		{"negative parallel rules", func(c *EngineConfig) { c.MaxParallelRules = -1 }, true},
		{"zero timeout", func(c *EngineConfig) { c.OrchestrationTimeout = 0 }, true},
		{"negative cache ttl", func(c *EngineConfig) { c.CacheTTL = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
