// internal/orchestration/engine_test.go
package orchestration

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meridianins/ratekeeper/internal/core/config"
	"github.com/meridianins/ratekeeper/internal/demographic"
	"github.com/meridianins/ratekeeper/internal/dependency"
	"github.com/meridianins/ratekeeper/internal/types"
)

func percentageRule(id types.RuleID, field string, op types.Operator, value any, pct float64) *types.AdvancedRule {
	return &types.AdvancedRule{
		RuleID:    id,
		Name:      string(id),
		Condition: &types.ConditionNode{Field: field, Operator: op, Value: value},
		Impact:    types.RuleImpact{Type: types.ImpactPercentage, Value: pct},
	}
}

func newTestEngine(t *testing.T, cfg *config.EngineConfig, rules []*types.AdvancedRule,
	wire func(*dependency.Manager)) *Engine {

	t.Helper()
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	source, err := NewMemoryRuleSource(rules)
	if err != nil {
		t.Fatalf("NewMemoryRuleSource() error = %v", err)
	}
	manager := dependency.NewManager(dependency.NewMemoryStore(), nil)
	if wire != nil {
		wire(manager)
	}
	engine, err := NewEngine(manager, source, cfg, Options{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestOrchestrate_PercentageDiscount(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("age-discount", "age", types.OpGTE, 40, -0.10),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"age-discount"},
		InputData:   map[string]any{"age": 45},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	if math.Abs(result.FinalPremium-900) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 900", result.FinalPremium)
	}
	if math.Abs(result.TotalAdjustmentFactor-0.9) > 1e-9 {
		t.Errorf("TotalAdjustmentFactor = %v, want 0.9", result.TotalAdjustmentFactor)
	}
	if result.RulesEvaluated != 1 || result.RulesApplied != 1 {
		t.Errorf("RulesEvaluated/Applied = %d/%d, want 1/1", result.RulesEvaluated, result.RulesApplied)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
}

func TestOrchestrate_ConditionNotMet(t *testing.T) {
	engine := newTestEngine(t, nil, []*types.AdvancedRule{
		percentageRule("age-discount", "age", types.OpGTE, 40, -0.10),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"age-discount"},
		InputData:   map[string]any{"age": 25},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	if result.FinalPremium != 1000 {
		t.Errorf("FinalPremium = %v, want 1000", result.FinalPremium)
	}
	if result.RulesApplied != 0 {
		t.Errorf("RulesApplied = %d, want 0", result.RulesApplied)
	}
	r := result.RuleResults[0]
	if !r.Success || r.ConditionMet || r.ImpactApplied {
		t.Errorf("result = success=%v met=%v applied=%v, want success only", r.Success, r.ConditionMet, r.ImpactApplied)
	}
}

func TestOrchestrate_ParallelComposesAdditively(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategyParallel

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("discount", "age", types.OpGTE, 18, -0.10),
		percentageRule("surcharge", "territory", types.OpEquals, "CA", 0.20),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"discount", "surcharge"},
		InputData:   map[string]any{"age": 30, "territory": "CA"},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	// Both rules compute against the same base: -100 + 200 = +100
	if math.Abs(result.FinalPremium-1100) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 1100", result.FinalPremium)
	}
}

func TestOrchestrate_SequentialFoldsPremium(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("discount", "age", types.OpGTE, 18, -0.10),
		percentageRule("surcharge", "territory", types.OpEquals, "CA", 0.20),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"discount", "surcharge"},
		InputData:   map[string]any{"age": 30, "territory": "CA"},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	// Second rule sees the folded premium: 1000 - 100 = 900, then +180
	if math.Abs(result.FinalPremium-1080) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 1080", result.FinalPremium)
	}
}

func TestOrchestrate_HybridFoldsBetweenLevels(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategyHybrid

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("base-discount", "age", types.OpGTE, 18, -0.10),
		percentageRule("loyalty", "tenure", types.OpGTE, 5, -0.05),
	}, func(m *dependency.Manager) {
		if err := m.AddDependency("loyalty", "base-discount", types.DepPrerequisite, "", ""); err != nil {
			t.Fatal(err)
		}
	})

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"base-discount", "loyalty"},
		InputData:   map[string]any{"age": 30, "tenure": 7},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	// Level 0 applies -100; level 1 computes -0.05 on 900 = -45
	if math.Abs(result.FinalPremium-855) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 855", result.FinalPremium)
	}
}

func TestOrchestrate_FormulaImpact(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	rule := &types.AdvancedRule{
		RuleID:    "capped-surcharge",
		Name:      "capped surcharge",
		Condition: &types.ConditionNode{Field: "age", Operator: types.OpGTE, Value: 18},
		Impact: types.RuleImpact{
			Type:    types.ImpactFormula,
			Formula: "min(premium * 0.15, 120)",
		},
	}
	engine := newTestEngine(t, cfg, []*types.AdvancedRule{rule}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"capped-surcharge"},
		InputData:   map[string]any{"age": 50},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}
	if math.Abs(result.FinalPremium-1120) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 1120 (surcharge capped at 120)", result.FinalPremium)
	}
}

func TestOrchestrate_FailedRuleDoesNotAbortBatch(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	broken := &types.AdvancedRule{
		RuleID:    "broken",
		Name:      "broken formula",
		Condition: &types.ConditionNode{Field: "age", Operator: types.OpGTE, Value: 18},
		Impact:    types.RuleImpact{Type: types.ImpactFormula, Formula: "premium / 0"},
	}
	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		broken,
		percentageRule("discount", "age", types.OpGTE, 18, -0.10),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"broken", "discount"},
		InputData:   map[string]any{"age": 30},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil (single rule failures recover)", err)
	}

	if math.Abs(result.FinalPremium-900) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 900 (healthy rule still applied)", result.FinalPremium)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if result.RuleResults[0].Success {
		t.Errorf("broken rule reported success")
	}
	if result.RuleResults[0].ImpactApplied || result.RuleResults[0].ResultValue != 0 {
		t.Errorf("broken rule applied an impact: %+v", result.RuleResults[0])
	}
}

func TestOrchestrate_UnknownRuleRecorded(t *testing.T) {
	engine := newTestEngine(t, nil, []*types.AdvancedRule{
		percentageRule("known", "age", types.OpGTE, 18, -0.10),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"known", "ghost"},
		InputData:   map[string]any{"age": 30},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one for the unknown rule", result.Errors)
	}
	if math.Abs(result.FinalPremium-900) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 900", result.FinalPremium)
	}
}

func TestOrchestrate_StrategiesAgreeOnIndependentRules(t *testing.T) {
	rules := []*types.AdvancedRule{
		percentageRule("r1", "age", types.OpGTE, 18, -0.10),
		percentageRule("r2", "territory", types.OpEquals, "NY", 0.05),
		percentageRule("r3", "smoker", types.OpEquals, false, -0.02),
	}
	request := Request{
		RuleIDs:     []types.RuleID{"r1", "r2", "r3"},
		InputData:   map[string]any{"age": 30, "territory": "NY", "smoker": false},
		BasePremium: 1000,
	}

	// Independent rules sit in one dependency level, so every strategy
	// computes deltas against the same base.
	strategies := []types.ExecutionStrategy{
		types.StrategyParallel, types.StrategyHybrid, types.StrategyOptimized,
	}
	want := 1000.0 - 100 + 50 - 20

	for _, strategy := range strategies {
		cfg := config.DefaultEngineConfig()
		cfg.ExecutionStrategy = strategy

		engine := newTestEngine(t, cfg, rules, nil)
		result, err := engine.Orchestrate(context.Background(), request)
		if err != nil {
			t.Fatalf("%s: Orchestrate() error = %v", strategy, err)
		}
		if math.Abs(result.FinalPremium-want) > 1e-9 {
			t.Errorf("%s: FinalPremium = %v, want %v", strategy, result.FinalPremium, want)
		}
	}
}

func TestOrchestrate_OptimizedSkipsRulesWithAbsentPrimaryField(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategyOptimized

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("present", "age", types.OpGTE, 18, -0.10),
		percentageRule("absent", "vehicle_class", types.OpEquals, "sports", 0.50),
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"present", "absent"},
		InputData:   map[string]any{"age": 30},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	if math.Abs(result.FinalPremium-900) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 900", result.FinalPremium)
	}
	if len(result.RuleResults) != 2 {
		t.Fatalf("RuleResults = %d entries, want 2 (skipped rules still recorded)", len(result.RuleResults))
	}
	skipped := result.RuleResults[1]
	if !skipped.Success || skipped.ConditionMet || skipped.ImpactApplied {
		t.Errorf("skipped rule = %+v, want recorded as not met", skipped)
	}
}

func TestOrchestrate_CacheHitOnRepeat(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("age-discount", "age", types.OpGTE, 40, -0.10),
	}, nil)

	request := Request{
		RuleIDs:     []types.RuleID{"age-discount"},
		InputData:   map[string]any{"age": 45},
		BasePremium: 1000,
	}

	first, err := engine.Orchestrate(context.Background(), request)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.Orchestrate(context.Background(), request)
	if err != nil {
		t.Fatal(err)
	}

	if second.FinalPremium != first.FinalPremium {
		t.Errorf("cached run premium = %v, first run = %v", second.FinalPremium, first.FinalPremium)
	}
	if second.CacheStats.Hits == 0 {
		t.Errorf("CacheStats.Hits = 0 after identical repeat, want > 0")
	}
	if !second.RuleResults[0].CacheHit {
		t.Errorf("RuleResults[0].CacheHit = false, want true")
	}
}

func TestOrchestrate_Timeout(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential
	cfg.OrchestrationTimeout = time.Nanosecond

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		percentageRule("age-discount", "age", types.OpGTE, 40, -0.10),
	}, nil)

	time.Sleep(time.Millisecond)
	_, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"age-discount"},
		InputData:   map[string]any{"age": 45},
		BasePremium: 1000,
	})
	if !errors.Is(err, types.ErrOrchestrationTimeout) {
		t.Errorf("Orchestrate() error = %v, want ErrOrchestrationTimeout", err)
	}
}

func TestOrchestrate_DemographicFailureRecovers(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	source, err := NewMemoryRuleSource([]*types.AdvancedRule{
		percentageRule("discount", "age", types.OpGTE, 18, -0.10),
	})
	if err != nil {
		t.Fatal(err)
	}
	manager := dependency.NewManager(dependency.NewMemoryStore(), nil)

	// A calculator without brackets fails every demographic lookup
	engine, err := NewEngine(manager, source, cfg, Options{
		Demographics: demographic.NewCalculator(demographic.Config{}),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"discount"},
		InputData:   map[string]any{"age": 30},
		Profile:     &types.DemographicProfile{Age: 30},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil (demographic failure recovers)", err)
	}

	if len(result.Errors) == 0 {
		t.Errorf("Errors empty, want the demographic failure recorded")
	}
	// Calculation continued on the unmodified premium
	if math.Abs(result.FinalPremium-900) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 900", result.FinalPremium)
	}
	if result.Demographic != nil {
		t.Errorf("Demographic = %+v, want nil after failure", result.Demographic)
	}
}

func TestOrchestrate_DemographicMergesIntoContext(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	past := time.Now().Add(-24 * time.Hour)
	demo := demographic.NewCalculator(demographic.Config{
		Brackets: []types.AgeBracket{
			{MinAge: 0, MaxAge: 120, BaseFactor: 1.5, EffectiveDate: past, IsActive: true},
		},
	})

	// The rule conditions on the demographic-adjusted premium
	rule := percentageRule("high-premium", "premium", types.OpGT, 1200, -0.10)
	source, err := NewMemoryRuleSource([]*types.AdvancedRule{rule})
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(dependency.NewManager(dependency.NewMemoryStore(), nil), source, cfg,
		Options{Demographics: demo})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"high-premium"},
		Profile:     &types.DemographicProfile{Age: 30, Gender: types.GenderMale},
		BasePremium: 1000,
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	// Demographic step: 1000 * 1.5 = 1500; rule sees 1500 and applies -150
	if math.Abs(result.FinalPremium-1350) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 1350", result.FinalPremium)
	}
	if result.Demographic == nil || result.Demographic.FinalPremium != 1500 {
		t.Errorf("Demographic = %+v, want final premium 1500", result.Demographic)
	}
	if math.Abs(result.TotalAdjustmentFactor-1.35) > 1e-9 {
		t.Errorf("TotalAdjustmentFactor = %v, want 1.35", result.TotalAdjustmentFactor)
	}
}

func TestOrchestrate_BenefitRulesApplied(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	past := time.Now().Add(-24 * time.Hour)
	demo := demographic.NewCalculator(demographic.Config{
		Brackets: []types.AgeBracket{
			{MinAge: 0, MaxAge: 120, BaseFactor: 1.5, EffectiveDate: past, IsActive: true},
		},
	})

	source, err := NewMemoryRuleSource(nil)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(dependency.NewManager(dependency.NewMemoryStore(), nil), source, cfg,
		Options{Demographics: demo})
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Orchestrate(context.Background(), Request{
		Profile:        &types.DemographicProfile{Age: 45, Gender: types.GenderMale},
		BasePremium:    1000,
		BenefitType:    types.BenefitDental,
		CoverageLimits: types.CoverageLimits{AnnualLimit: 500_000},
	})
	if err != nil {
		t.Fatalf("Orchestrate() error = %v, want nil", err)
	}

	// 1000 * 1.5 (bracket) * 1.10 (dental age 45) * 1.10 (500k limit) = 1815
	if math.Abs(result.FinalPremium-1815) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 1815", result.FinalPremium)
	}
	if result.Demographic == nil {
		t.Fatal("Demographic = nil, want benefit adjustments recorded")
	}
	if math.Abs(result.Demographic.TotalFactor-1.815) > 1e-9 {
		t.Errorf("TotalFactor = %v, want 1.815", result.Demographic.TotalFactor)
	}
	last := result.Demographic.Adjustments[len(result.Demographic.Adjustments)-1]
	if last.Type != "coverage_limit" {
		t.Errorf("last adjustment = %s, want coverage_limit", last.Type)
	}
}

func TestOrchestrate_WarnsOnExtremeAdjustment(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ExecutionStrategy = types.StrategySequential

	engine := newTestEngine(t, cfg, []*types.AdvancedRule{
		{
			RuleID:    "huge",
			Name:      "huge surcharge",
			Condition: &types.ConditionNode{Field: "age", Operator: types.OpGTE, Value: 0},
			Impact:    types.RuleImpact{Type: types.ImpactMultiplier, Value: 20},
		},
	}, nil)

	result, err := engine.Orchestrate(context.Background(), Request{
		RuleIDs:     []types.RuleID{"huge"},
		InputData:   map[string]any{"age": 30},
		BasePremium: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) == 0 {
		t.Errorf("Warnings empty, want extreme-factor warning")
	}
	// MULTIPLIER 20 composes as delta 100*(20-1) = 1900
	if math.Abs(result.FinalPremium-2000) > 1e-9 {
		t.Errorf("FinalPremium = %v, want 2000", result.FinalPremium)
	}
}
