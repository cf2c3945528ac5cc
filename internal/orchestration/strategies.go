// internal/orchestration/strategies.go
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/meridianins/ratekeeper/internal/conditions"
	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Execution strategies.
 *
 * SEQUENTIAL runs the plan in order and folds each applied delta into the
 * working premium, so later rules see the context earlier rules produced.
 *
 * PARALLEL runs every rule concurrently against the same snapshot of the
 * input, bounded by MaxParallelRules. Rules never see each other's effects;
 * the engine aggregates their deltas afterwards.
 *
 * HYBRID partitions the plan into prerequisite levels, runs each level in
 * parallel, and folds applied deltas between levels. This is the default:
 * prerequisites observe their dependencies' output while independent rules
 * still run concurrently.
 *
 * OPTIMIZED builds on HYBRID with a whole-plan cache, a primary-field
 * pre-filter (a rule whose first referenced field is absent from the input
 * cannot match and is skipped without evaluation) and cheap-first ordering
 * inside each level.
 *
 * Every strategy returns results positionally aligned with the plan's
 * execution order. A context deadline aborts with ErrOrchestrationTimeout;
 * per-rule failures never do.
 */

func (e *Engine) evaluateCondition(rule *types.AdvancedRule, input map[string]any) (bool, error) {
	if rule.Condition == nil {
		// An unconditional rule always applies
		return true, nil
	}
	return conditions.Evaluate(rule.Condition, input)
}

func (e *Engine) execute(ctx context.Context, plan *types.RuleExecutionPlan,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	switch e.cfg.ExecutionStrategy {
	case types.StrategySequential:
		return e.executeSequential(ctx, plan.ExecutionOrder, input)
	case types.StrategyParallel:
		return e.executeParallel(ctx, plan.ExecutionOrder, input)
	case types.StrategyOptimized:
		return e.executeOptimized(ctx, plan.ExecutionOrder, input)
	default:
		return e.executeHybrid(ctx, plan.ExecutionOrder, input)
	}
}

// deadlineErr maps a context error onto the orchestration timeout sentinel.
func deadlineErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrOrchestrationTimeout, err)
	}
	return err
}

// foldPremium merges an applied delta into the working context so later
// rules evaluate against the running premium.
func foldPremium(input map[string]any, delta float64) {
	premium, _ := toFloat64Value(input["premium"])
	input["premium"] = premium + delta
}

func (e *Engine) executeSequential(ctx context.Context, order []types.RuleID,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	results := make([]types.RuleExecutionResult, 0, len(order))
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, deadlineErr(err)
		}
		r := e.executeRule(ctx, id, input)
		if r.ImpactApplied {
			foldPremium(input, r.ResultValue)
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) executeParallel(ctx context.Context, order []types.RuleID,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	results := make([]types.RuleExecutionResult, len(order))
	sem := make(chan struct{}, e.cfg.MaxParallelRules)
	var wg sync.WaitGroup

	for i, id := range order {
		wg.Add(1)
		go func(i int, id types.RuleID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i] = types.RuleExecutionResult{RuleID: id, ErrorMessage: err.Error()}
				return
			}
			results[i] = e.executeRule(ctx, id, input)
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, deadlineErr(err)
	}
	return results, nil
}

func (e *Engine) executeHybrid(ctx context.Context, order []types.RuleID,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	levels, err := e.deps.PartitionLevels(order)
	if err != nil {
		return nil, err
	}

	results := make([]types.RuleExecutionResult, 0, len(order))
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, deadlineErr(err)
		}

		batch, err := e.runLevel(ctx, level, input)
		if err != nil {
			return nil, err
		}
		// Fold between levels: dependents observe their prerequisites
		for _, r := range batch {
			if r.ImpactApplied {
				foldPremium(input, r.ResultValue)
			}
		}
		results = append(results, batch...)
	}
	return results, nil
}

// runLevel executes one dependency level, concurrently when it holds more
// than one rule. Rules within a level share an unmodified context snapshot.
func (e *Engine) runLevel(ctx context.Context, level []types.RuleID,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	if len(level) == 1 {
		if err := ctx.Err(); err != nil {
			return nil, deadlineErr(err)
		}
		return []types.RuleExecutionResult{e.executeRule(ctx, level[0], input)}, nil
	}
	return e.executeParallel(ctx, level, input)
}

func (e *Engine) executeOptimized(ctx context.Context, order []types.RuleID,
	input map[string]any) ([]types.RuleExecutionResult, error) {

	key := e.cache.PipelineKey(order, input)
	if cached, ok := e.pipeline.Get(key); ok {
		e.metrics.observeCache(true)
		return cached, nil
	}
	e.metrics.observeCache(false)

	// Pre-filter: load every rule once; a rule whose primary field is
	// absent cannot match and is recorded as skipped without evaluation.
	loaded := make(map[types.RuleID]*types.AdvancedRule, len(order))
	prefiltered := make(map[types.RuleID]types.RuleExecutionResult)
	runnable := make([]types.RuleID, 0, len(order))

	for _, id := range order {
		rule, err := e.rules.Rule(ctx, id)
		if err != nil {
			prefiltered[id] = types.RuleExecutionResult{RuleID: id, ErrorMessage: err.Error()}
			continue
		}
		loaded[id] = rule
		if field := conditions.PrimaryField(rule.Condition); field != "" {
			if _, found := conditions.Resolve(field, input); !found {
				prefiltered[id] = types.RuleExecutionResult{
					RuleID:   id,
					RuleName: rule.Name,
					Success:  true,
					Details:  map[string]any{"skipped_missing_field": field},
				}
				continue
			}
		}
		runnable = append(runnable, id)
	}

	levels, err := e.deps.PartitionLevels(runnable)
	if err != nil {
		return nil, err
	}

	executed := make(map[types.RuleID]types.RuleExecutionResult, len(runnable))
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, deadlineErr(err)
		}

		// Cheap-first inside the level; stable so plan order breaks ties
		sort.SliceStable(level, func(i, j int) bool {
			return conditions.EstimateCost(loaded[level[i]].Condition) <
				conditions.EstimateCost(loaded[level[j]].Condition)
		})

		batch, err := e.runLevel(ctx, level, input)
		if err != nil {
			return nil, err
		}
		for i, r := range batch {
			if r.ImpactApplied {
				foldPremium(input, r.ResultValue)
			}
			executed[level[i]] = r
		}
	}

	// Reassemble positionally in plan order
	results := make([]types.RuleExecutionResult, 0, len(order))
	for _, id := range order {
		if r, ok := executed[id]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, prefiltered[id])
	}

	e.pipeline.Set(key, results)
	return results, nil
}
