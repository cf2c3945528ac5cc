// Package config provides configuration management for RateKeeper services.
package config

import (
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

// EngineConfig holds configuration for the pricing orchestration engine.
type EngineConfig struct {
	ExecutionStrategy    types.ExecutionStrategy
	ConflictStrategy     types.ConflictStrategy
	MaxParallelRules     int
	OrchestrationTimeout time.Duration
	CacheTTL             time.Duration
	CacheMaxEntries      int
	DatabaseURL          string
}

// DefaultEngineConfig returns configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		ExecutionStrategy:    types.StrategyHybrid,
		ConflictStrategy:     types.PriorityBased,
		MaxParallelRules:     8,
		OrchestrationTimeout: 30 * time.Second,
		CacheTTL:             5 * time.Minute,
		CacheMaxEntries:      10000,
	}
}
