// internal/orchestration/impact.go
package orchestration

import (
	"fmt"

	"github.com/meridianins/ratekeeper/internal/formula"
	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Rule impact calculation.
 *
 * All impact types yield a premium delta so independently evaluated rules
 * compose additively:
 *   PERCENTAGE:   premium * value
 *   FIXED_AMOUNT: value (flat, currency-denominated)
 *   MULTIPLIER:   premium * (value - 1), keeping delta semantics
 *   FORMULA:      safe AST evaluation with named-variable lookup
 *
 * Formulas run through internal/formula: parsed to an AST, arithmetic
 * operators and a small numeric function whitelist only, variables resolved
 * by name against the calculation context. Evaluation errors fail closed to
 * a failed rule result; they never default to a zero-cost success.
 */

// calculateImpact computes the premium delta for a matched rule.
func calculateImpact(rule *types.AdvancedRule, input map[string]any, currentPremium float64) (float64, error) {
	switch rule.Impact.Type {
	case types.ImpactPercentage:
		return currentPremium * rule.Impact.Value, nil

	case types.ImpactFixedAmount:
		return rule.Impact.Value, nil

	case types.ImpactMultiplier:
		return currentPremium * (rule.Impact.Value - 1), nil

	case types.ImpactFormula:
		if rule.Impact.Formula == "" {
			return 0, fmt.Errorf("%w: rule %s has an empty formula", types.ErrFormulaParse, rule.RuleID)
		}
		vars := make(map[string]any, len(input)+1)
		for k, v := range input {
			vars[k] = v
		}
		vars["premium"] = currentPremium
		return formula.Run(rule.Impact.Formula, vars)

	default:
		return 0, fmt.Errorf("%w: unknown impact type %q", types.ErrValidation, rule.Impact.Type)
	}
}
