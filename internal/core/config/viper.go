package config

import (
	"fmt"
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultEngineConfig
	v.SetDefault("engine.execution_strategy", string(types.StrategyHybrid))
	v.SetDefault("engine.conflict_strategy", string(types.PriorityBased))
	v.SetDefault("engine.max_parallel_rules", 8)
	v.SetDefault("engine.orchestration_timeout", "30s")
	v.SetDefault("engine.cache_ttl", "5m")
	v.SetDefault("engine.cache_max_entries", 10000)
	v.SetDefault("engine.database_url", "")

	// Bind environment variables with RK_ prefix
	v.SetEnvPrefix("RK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &EngineConfig{
		ExecutionStrategy:    types.ExecutionStrategy(v.GetString("engine.execution_strategy")),
		ConflictStrategy:     types.ConflictStrategy(v.GetString("engine.conflict_strategy")),
		MaxParallelRules:     v.GetInt("engine.max_parallel_rules"),
		OrchestrationTimeout: v.GetDuration("engine.orchestration_timeout"),
		CacheTTL:             v.GetDuration("engine.cache_ttl"),
		CacheMaxEntries:      v.GetInt("engine.cache_max_entries"),
		DatabaseURL:          v.GetString("engine.database_url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks strategy names and positive execution limits.
func validateConfig(cfg *EngineConfig) error {
	switch cfg.ExecutionStrategy {
	case types.StrategySequential, types.StrategyParallel, types.StrategyHybrid, types.StrategyOptimized:
	default:
		return fmt.Errorf("unknown execution strategy %q", cfg.ExecutionStrategy)
	}

	switch cfg.ConflictStrategy {
	case types.FailOnConflict, types.PriorityBased, types.FirstMatch, types.LastMatch, types.Aggregate:
	default:
		return fmt.Errorf("unknown conflict strategy %q", cfg.ConflictStrategy)
	}

	if cfg.MaxParallelRules <= 0 {
		return fmt.Errorf("max_parallel_rules must be positive, got %d", cfg.MaxParallelRules)
	}
	if cfg.OrchestrationTimeout <= 0 {
		return fmt.Errorf("orchestration_timeout must be positive, got %v", cfg.OrchestrationTimeout)
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be non-negative, got %v", cfg.CacheTTL)
	}
	return nil
}
