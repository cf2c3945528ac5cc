// internal/premium/calculator.go

// Package premium provides the top-level premium calculation API and
// override management on top of the orchestration engine.
package premium

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/meridianins/ratekeeper/internal/orchestration"
	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Premium calculator.
 *
 * Runs one CalculationRequest end to end: validate, orchestrate rules and
 * demographic pricing, then apply profile-level pricing components in a
 * fixed order (deductible, copay, discount, commission) and round to cents.
 *
 * Component factors at their zero value are treated as absent. Discount and
 * commission are rates: a 0.05 discount multiplies by 0.95, a 0.10
 * commission by 1.10.
 *
 * The result's FinalPremium is authoritative only when Errors is empty; a
 * calculation that recovered from a demographic or rule failure surfaces the
 * failure there for human review.
 */

// Calculator computes complete premiums through the orchestration engine.
type Calculator struct {
	engine *orchestration.Engine
	logger *slog.Logger
}

// NewCalculator creates a premium calculator.
func NewCalculator(engine *orchestration.Engine, logger *slog.Logger) (*Calculator, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{engine: engine, logger: logger}, nil
}

// Calculate runs one premium calculation.
func (c *Calculator) Calculate(ctx context.Context, req types.CalculationRequest) (*types.CalculationResult, error) {
	if req.BasePremium <= 0 {
		return nil, fmt.Errorf("%w: base premium must be positive, got %.2f",
			types.ErrValidation, req.BasePremium)
	}

	orch, err := c.engine.Orchestrate(ctx, orchestration.Request{
		RuleIDs:          req.RuleIDs,
		InputData:        req.InputData,
		Profile:          req.Profile,
		BasePremium:      req.BasePremium,
		BenefitType:      req.BenefitType,
		CoverageLimits:   req.CoverageLimits,
		IncludeActuarial: req.IncludeActuarial,
	})
	if err != nil {
		return nil, err
	}

	final := applyComponents(orch.FinalPremium, req.Components)
	final = roundCents(final)

	result := &types.CalculationResult{
		CalculationID: orch.CalculationID,
		BasePremium:   req.BasePremium,
		FinalPremium:  final,
		Orchestration: orch,
		Errors:        orch.Errors,
		Warnings:      orch.Warnings,
	}

	c.logger.Info("premium calculated",
		"calculation_id", string(result.CalculationID),
		"base_premium", req.BasePremium,
		"final_premium", final,
		"errors", len(result.Errors),
	)
	return result, nil
}

// applyComponents applies the pricing components in fixed order. Zero-valued
// factors are absent.
func applyComponents(premium float64, c types.PricingComponents) float64 {
	if c.DeductibleFactor != 0 {
		premium *= c.DeductibleFactor
	}
	if c.CopayFactor != 0 {
		premium *= c.CopayFactor
	}
	if c.DiscountRate != 0 {
		premium *= 1 - c.DiscountRate
	}
	if c.CommissionRate != 0 {
		premium *= 1 + c.CommissionRate
	}
	return premium
}

// roundCents rounds half away from zero to two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
