// internal/demographic/benefit.go
package demographic

import (
	"fmt"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Benefit-specific post-processing.
 *
 * After the main demographic pipeline, each product line applies its own
 * age-banded factor curve plus a coverage-limit loading derived from the
 * configured annual limit. Curves are banded rather than continuous: rate
 * filings quote per-band factors.
 */

// ApplyBenefitRules applies benefit-type-dependent age curves and the
// coverage-limit factor. Returns the adjusted premium and the audit entries
// for applied steps.
func (c *Calculator) ApplyBenefitRules(premium float64, profile types.DemographicProfile,
	benefitType types.BenefitType, limits types.CoverageLimits) (float64, []types.Adjustment) {

	var adjustments []types.Adjustment

	apply := func(adjType string, factor float64, description string) {
		if factor == 1.0 {
			return
		}
		before := premium
		premium = premium * factor
		adjustments = append(adjustments, types.Adjustment{
			Type:          adjType,
			BaseValue:     before,
			AdjustedValue: premium,
			Factor:        factor,
			Description:   description,
			Source:        "benefit_rules",
		})
	}

	apply("benefit_age_curve", benefitAgeFactor(benefitType, profile.Age),
		fmt.Sprintf("%s age curve for age %d", benefitType, profile.Age))

	apply("coverage_limit", coverageLimitFactor(limits),
		fmt.Sprintf("annual limit %.0f loading", limits.AnnualLimit))

	return premium, adjustments
}

// benefitAgeFactor returns the age-banded factor for a product line.
func benefitAgeFactor(benefitType types.BenefitType, age int) float64 {
	switch benefitType {
	case types.BenefitDental:
		switch {
		case age < 18:
			return 1.15
		case age < 40:
			return 1.0
		case age < 60:
			return 1.10
		default:
			return 1.25
		}
	case types.BenefitVision:
		switch {
		case age < 18:
			return 1.10
		case age < 50:
			return 1.0
		default:
			return 1.15
		}
	case types.BenefitMedical:
		switch {
		case age < 30:
			return 0.95
		case age < 50:
			return 1.0
		case age < 65:
			return 1.20
		default:
			return 1.45
		}
	default:
		return 1.0
	}
}

// coverageLimitFactor loads the premium by configured annual limit tier.
func coverageLimitFactor(limits types.CoverageLimits) float64 {
	switch {
	case limits.AnnualLimit >= 1_000_000:
		return 1.15
	case limits.AnnualLimit >= 500_000:
		return 1.10
	case limits.AnnualLimit >= 100_000:
		return 1.05
	default:
		return 1.0
	}
}
