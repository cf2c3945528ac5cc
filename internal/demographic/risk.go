// internal/demographic/risk.go
package demographic

/*
 * Risk factor multiplier curves.
 *
 * Each named risk factor carries a base multiplier and an age-linear slope:
 * factor(age) = base + slope * age. Older insureds with the same risk tag
 * pay a larger loading. Unknown tags fall back to a flat 1.1 so unmodeled
 * risks still price conservatively instead of being ignored.
 */

// RiskCurve is an age-linear multiplier function for one risk factor.
type RiskCurve struct {
	Base     float64 `json:"base"`
	AgeSlope float64 `json:"age_slope"`
}

// Factor computes the multiplier for a given age.
func (c RiskCurve) Factor(age int) float64 {
	return c.Base + c.AgeSlope*float64(age)
}

// unknownRiskFactor prices risk tags with no configured curve.
const unknownRiskFactor = 1.1

// DefaultRiskCurves returns the built-in risk factor curves.
func DefaultRiskCurves() map[string]RiskCurve {
	return map[string]RiskCurve{
		"SMOKING":                {Base: 1.15, AgeSlope: 0.003},
		"DIABETES":               {Base: 1.20, AgeSlope: 0.004},
		"HYPERTENSION":           {Base: 1.10, AgeSlope: 0.002},
		"FAMILY_HISTORY_CARDIAC": {Base: 1.08, AgeSlope: 0.002},
	}
}

// riskFactor resolves the multiplier for one risk tag at a given age.
func (c *Calculator) riskFactor(tag string, age int) float64 {
	curve, ok := c.riskCurves[tag]
	if !ok {
		return unknownRiskFactor
	}
	return curve.Factor(age)
}
