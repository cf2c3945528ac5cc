// internal/demographic/calculator.go
package demographic

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Age/demographic pricing pipeline.
 *
 * Applies demographic adjustments to a base premium in a strict order, each
 * step multiplying the running premium:
 *   1. Age bracket base factor (no match is fatal: ErrNoApplicableBracket)
 *   2. Gender factor (skipped when 1.0)
 *   3. Territory factor (skipped when 1.0)
 *   4. Benefit-specific factor
 *   5. Occupation risk category factor, then per-risk-tag multipliers
 *      (age-linear curves; unknown tags get a flat 1.1)
 *   6. Actuarial table adjustment (optional, see actuarial.go)
 *
 * Every applied step appends an ordered types.Adjustment entry for the
 * audit trail. Steps whose factor is exactly 1.0 leave no entry but keep
 * their position in the pipeline order.
 *
 * Bracket selection: active brackets within their effective window that
 * match the age. Multiple matches prefer a bracket carrying a factor for
 * the requested benefit type, otherwise the first match; overlaps are
 * logged as warnings, not rejected (manual curation is permitted).
 */

// Config assembles the pricing configuration loaded from external
// collaborators. The calculator never mutates it.
type Config struct {
	Brackets       []types.AgeBracket
	Tables         []types.ActuarialTable
	OccupationRisk map[string]types.RiskCategory
	RiskCurves     map[string]RiskCurve
	Logger         *slog.Logger
}

// Calculator computes demographic premium adjustments.
// Safe for concurrent use; all state is read-only after construction.
type Calculator struct {
	brackets       []types.AgeBracket
	tables         []types.ActuarialTable
	occupationRisk map[string]types.RiskCategory
	riskCurves     map[string]RiskCurve
	logger         *slog.Logger
}

// NewCalculator builds a calculator from loaded pricing configuration.
func NewCalculator(cfg Config) *Calculator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	curves := cfg.RiskCurves
	if curves == nil {
		curves = DefaultRiskCurves()
	}
	return &Calculator{
		brackets:       cfg.Brackets,
		tables:         cfg.Tables,
		occupationRisk: cfg.OccupationRisk,
		riskCurves:     curves,
		logger:         logger,
	}
}

// Calculate runs the demographic pricing pipeline.
// Idempotent: identical inputs yield the same premium and adjustment list.
func (c *Calculator) Calculate(basePremium float64, profile types.DemographicProfile,
	benefitType types.BenefitType, includeActuarial bool) (*types.DemographicResult, error) {

	if basePremium <= 0 {
		return nil, fmt.Errorf("%w: base premium must be positive, got %v", types.ErrValidation, basePremium)
	}
	if profile.Age < 0 {
		return nil, fmt.Errorf("%w: age must be non-negative, got %d", types.ErrValidation, profile.Age)
	}

	bracket, err := c.selectBracket(profile.Age, benefitType)
	if err != nil {
		return nil, err
	}

	result := &types.DemographicResult{BasePremium: basePremium}
	premium := basePremium

	apply := func(adjType string, factor float64, description, source string) {
		if factor == 1.0 {
			return
		}
		before := premium
		premium = premium * factor
		result.Adjustments = append(result.Adjustments, types.Adjustment{
			Type:          adjType,
			BaseValue:     before,
			AdjustedValue: premium,
			Factor:        factor,
			Description:   description,
			Source:        source,
		})
	}

	// Step 1: age bracket base factor
	apply("age_bracket", bracket.BaseFactor,
		fmt.Sprintf("age bracket %d-%d base factor", bracket.MinAge, bracket.MaxAge), "age_bracket")

	// Step 2: gender factor
	apply("gender", factorOrDefault(bracket.GenderFactors, profile.Gender),
		fmt.Sprintf("gender factor for %s", profile.Gender), "age_bracket")

	// Step 3: territory factor
	apply("territory", factorOrDefault(bracket.TerritoryFactors, profile.Territory),
		fmt.Sprintf("territory factor for %s", profile.Territory), "age_bracket")

	// Step 4: benefit-specific factor
	if benefitType != types.BenefitNone {
		apply("benefit_type", factorOrDefault(bracket.BenefitFactors, benefitType),
			fmt.Sprintf("benefit factor for %s", benefitType), "age_bracket")
	}

	// Step 5: risk adjustments
	if profile.Occupation != "" {
		category, ok := c.occupationRisk[profile.Occupation]
		if !ok {
			category = types.RiskMedium
		}
		apply("occupation_risk", factorOrDefault(bracket.RiskAdjustments, category),
			fmt.Sprintf("occupation %q risk category %s", profile.Occupation, category), "occupation_mapping")
	}
	for _, tag := range profile.RiskFactors {
		apply("risk_factor", c.riskFactor(tag, profile.Age),
			fmt.Sprintf("risk factor %s", tag), "risk_curves")
	}

	// Step 6: actuarial adjustment
	if includeActuarial {
		for _, table := range c.relevantTables(benefitType) {
			rate := tableRate(table, profile.Age, profile.Gender)
			apply("actuarial", rate,
				fmt.Sprintf("%s table v%s rate for age %d", table.Type, table.Version, profile.Age),
				"actuarial_table")
		}
	}

	result.FinalPremium = premium
	result.TotalFactor = premium / basePremium
	return result, nil
}

// selectBracket finds the active bracket covering the age. Multiple matches
// prefer one with a benefit-specific factor; overlaps warn, never reject.
func (c *Calculator) selectBracket(age int, benefitType types.BenefitType) (*types.AgeBracket, error) {
	now := time.Now()
	var matches []*types.AgeBracket
	for i := range c.brackets {
		b := &c.brackets[i]
		if !b.IsActive || !b.Matches(age) {
			continue
		}
		if b.EffectiveDate.After(now) {
			continue
		}
		if b.ExpiryDate != nil && !b.ExpiryDate.After(now) {
			continue
		}
		matches = append(matches, b)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: age %d, benefit %q", types.ErrNoApplicableBracket, age, benefitType)
	}
	if len(matches) > 1 {
		c.logger.Warn("overlapping active age brackets",
			"age", age,
			"benefit_type", string(benefitType),
			"matches", len(matches),
		)
		if benefitType != types.BenefitNone {
			for _, b := range matches {
				if _, ok := b.BenefitFactors[benefitType]; ok {
					return b, nil
				}
			}
		}
	}
	return matches[0], nil
}

// factorOrDefault reads a factor map, defaulting to the neutral 1.0.
func factorOrDefault[K comparable](m map[K]float64, key K) float64 {
	if f, ok := m[key]; ok {
		return f
	}
	return 1.0
}
