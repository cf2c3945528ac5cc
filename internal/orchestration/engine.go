// internal/orchestration/engine.go
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianins/ratekeeper/internal/core/config"
	"github.com/meridianins/ratekeeper/internal/demographic"
	"github.com/meridianins/ratekeeper/internal/dependency"
	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Rule orchestration engine.
 *
 * Top-level coordinator for one premium calculation:
 *   1. Build an execution plan via the dependency manager
 *   2. Run the demographic pricing step and merge its output into the
 *      input context so rules can reference demographic-adjusted values
 *   3. Execute the plan per the configured strategy (strategies.go)
 *   4. Aggregate: final premium = demographic-adjusted premium plus the
 *      sum of every applied rule's delta
 *
 * Failure semantics: a single rule failure becomes a failed
 * RuleExecutionResult and never aborts the batch. Plan construction
 * failures and the orchestration deadline abort the whole calculation;
 * a timed-out calculation returns ErrOrchestrationTimeout with no partial
 * result. A demographic failure is appended to Errors and the calculation
 * continues on the unmodified premium - the result is then flagged for
 * human review rather than silently billed.
 */

// Request carries the inputs for one orchestration call.
type Request struct {
	RuleIDs          []types.RuleID
	InputData        map[string]any
	Profile          *types.DemographicProfile
	BasePremium      float64
	BenefitType      types.BenefitType
	CoverageLimits   types.CoverageLimits
	IncludeActuarial bool
}

// Options carries optional engine collaborators.
type Options struct {
	Demographics *demographic.Calculator
	Metrics      *Metrics
	Logger       *slog.Logger
}

// Engine coordinates planning, demographic pricing and rule execution.
type Engine struct {
	deps     *dependency.Manager
	rules    RuleSource
	cfg      *config.EngineConfig
	demo     *demographic.Calculator
	cache    *ResultCache
	pipeline *pipelineCache
	metrics  *Metrics
	logger   *slog.Logger
}

// NewEngine creates an orchestration engine instance.
func NewEngine(deps *dependency.Manager, rules RuleSource, cfg *config.EngineConfig, opts Options) (*Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependency manager cannot be nil")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		deps:     deps,
		rules:    rules,
		cfg:      cfg,
		demo:     opts.Demographics,
		cache:    NewResultCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		pipeline: newPipelineCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// Orchestrate runs one premium calculation end to end.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (*types.OrchestrationResult, error) {
	start := time.Now()
	strategy := string(e.cfg.ExecutionStrategy)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.OrchestrationTimeout)
	defer cancel()

	plan, err := e.deps.CreateExecutionPlan(req.RuleIDs, e.cfg.ConflictStrategy)
	if err != nil {
		e.metrics.observeOrchestration(strategy, "plan_failed", time.Since(start))
		return nil, err
	}
	e.metrics.addConflicts(len(plan.Conflicts))

	result := &types.OrchestrationResult{
		CalculationID:     types.NewCalculationID(),
		BasePremium:       req.BasePremium,
		Plan:              plan,
		ConflictsDetected: len(plan.Conflicts),
		ConflictsResolved: len(plan.Metadata.DroppedRules),
		Errors:            []string{},
		Warnings:          []string{},
	}

	// Working context: a copy, so callers never observe folded premiums
	input := make(map[string]any, len(req.InputData)+4)
	for k, v := range req.InputData {
		input[k] = v
	}

	premium := req.BasePremium
	if req.Profile != nil && req.BasePremium > 0 && e.demo != nil {
		demoResult, err := e.demo.Calculate(req.BasePremium, *req.Profile, req.BenefitType, req.IncludeActuarial)
		if err != nil {
			// Continue on the unmodified premium; non-empty Errors blocks billing
			result.Errors = append(result.Errors, err.Error())
			e.logger.Warn("demographic step failed", "error", err)
		} else {
			benefitPremium, benefitAdjustments := e.demo.ApplyBenefitRules(
				demoResult.FinalPremium, *req.Profile, req.BenefitType, req.CoverageLimits)
			if len(benefitAdjustments) > 0 {
				demoResult.Adjustments = append(demoResult.Adjustments, benefitAdjustments...)
				demoResult.FinalPremium = benefitPremium
				demoResult.TotalFactor = benefitPremium / demoResult.BasePremium
			}

			result.Demographic = demoResult
			premium = demoResult.FinalPremium
			input["premium"] = premium
			input["demographic_factor"] = demoResult.TotalFactor
			input["age"] = float64(req.Profile.Age)
			input["gender"] = string(req.Profile.Gender)
			input["territory"] = req.Profile.Territory
		}
	}

	if existing, ok := toFloat64Value(input["premium"]); ok {
		premium = existing
	} else {
		input["premium"] = premium
	}

	ruleResults, err := e.execute(ctx, plan, input)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, types.ErrOrchestrationTimeout) {
			outcome = "timeout"
		}
		e.metrics.observeOrchestration(strategy, outcome, time.Since(start))
		return nil, err
	}

	finalPremium := premium
	for _, r := range ruleResults {
		e.metrics.observeRule(ruleOutcome(r))
		if r.ImpactApplied {
			finalPremium += r.ResultValue
			result.RulesApplied++
		}
		if r.ErrorMessage != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: %s", r.RuleID, r.ErrorMessage))
		}
	}

	result.RuleResults = ruleResults
	result.RulesEvaluated = len(ruleResults)
	result.FinalPremium = finalPremium
	result.TotalAdjustmentFactor = 1.0
	if req.BasePremium != 0 {
		result.TotalAdjustmentFactor = finalPremium / req.BasePremium
	}
	result.CacheStats = e.cache.Stats()
	result.TotalExecutionTime = time.Since(start)

	if result.TotalAdjustmentFactor > 10 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("total adjustment factor %.2f exceeds 10", result.TotalAdjustmentFactor))
	}
	if result.FinalPremium < 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("final premium %.2f is negative", result.FinalPremium))
	}

	e.metrics.observeOrchestration(strategy, "ok", result.TotalExecutionTime)
	e.logger.Debug("orchestration complete",
		"calculation_id", string(result.CalculationID),
		"rules_evaluated", result.RulesEvaluated,
		"rules_applied", result.RulesApplied,
		"final_premium", result.FinalPremium,
	)
	return result, nil
}

// executeRule evaluates one rule against the context, consulting the
// per-rule cache first. Panics and evaluation errors become failed results.
func (e *Engine) executeRule(ctx context.Context, id types.RuleID, input map[string]any) (result types.RuleExecutionResult) {
	start := time.Now()
	result = types.RuleExecutionResult{RuleID: id}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.ImpactApplied = false
			result.ResultValue = 0
			result.ErrorMessage = fmt.Sprintf("panic during rule evaluation: %v", r)
			result.ExecutionTime = time.Since(start)
		}
	}()

	rule, err := e.rules.Rule(ctx, id)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result
	}
	result.RuleName = rule.Name

	key := e.cache.Key(id, input)
	if cached, ok := e.cache.Get(key); ok {
		e.metrics.observeCache(true)
		cached.CacheHit = true
		cached.ExecutionTime = time.Since(start)
		return cached
	}
	e.metrics.observeCache(false)

	met, err := e.evaluateCondition(rule, input)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result
	}
	result.Success = true
	result.ConditionMet = met

	if met {
		premium, _ := toFloat64Value(input["premium"])
		delta, err := calculateImpact(rule, input, premium)
		if err != nil {
			result.Success = false
			result.ConditionMet = met
			result.ErrorMessage = err.Error()
			result.ExecutionTime = time.Since(start)
			return result
		}
		result.ImpactApplied = true
		result.ResultValue = delta
		result.Details = map[string]any{
			"impact_type":   string(rule.Impact.Type),
			"premium_basis": premium,
		}
	}

	result.ExecutionTime = time.Since(start)
	e.cache.Set(key, result)
	return result
}

func ruleOutcome(r types.RuleExecutionResult) string {
	switch {
	case r.CacheHit:
		return "cached"
	case !r.Success:
		return "failed"
	case r.ImpactApplied:
		return "applied"
	default:
		return "not_met"
	}
}

func toFloat64Value(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
