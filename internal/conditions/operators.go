// internal/conditions/operators.go
package conditions

import (
	"fmt"
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the comparison operators with type-aware semantics over values
 * pulled straight from JSON-decoded input records.
 *
 * Operators:
 *   - EQUALS/NOT_EQUALS: Equality with numeric type mixing
 *   - GT/GTE/LT/LTE: Numeric comparison only; type mismatch is not met
 *   - IN/NOT_IN: Membership with equality semantics
 *   - BETWEEN: Inclusive [low, high] two-element range
 *   - CONTAINS: Substring on strings, membership on slices
 *
 * Numeric comparison handles float64/int/int64 mixing for JSON compatibility.
 *
 * Why function-based: a switch over operators is cleaner than one interface
 * implementation per operator when behavior variation is this small.
 */

// compare applies a comparison operator to a resolved field value and the
// condition's target value. Unknown operators and malformed IN/BETWEEN
// operands are errors; type mismatches on ordered comparisons are not met.
func compare(op types.Operator, value, target any) (bool, error) {
	switch op {
	case types.OpEquals:
		return compareEqual(value, target), nil
	case types.OpNotEquals:
		return !compareEqual(value, target), nil
	case types.OpGT, types.OpGTE, types.OpLT, types.OpLTE:
		return compareOrdered(op, value, target), nil
	case types.OpIn:
		set, err := targetList(op, target)
		if err != nil {
			return false, err
		}
		return containsValue(set, value), nil
	case types.OpNotIn:
		set, err := targetList(op, target)
		if err != nil {
			return false, err
		}
		return !containsValue(set, value), nil
	case types.OpBetween:
		return compareBetween(value, target)
	case types.OpContains:
		return compareContains(value, target), nil
	default:
		return false, fmt.Errorf("%w: %w %q", types.ErrConditionEvaluation, types.ErrUnknownOperator, op)
	}
}

// compareEqual performs equality comparison with numeric type coercion.
// Handles float64/int/int64 mixing for JSON compatibility.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// compareOrdered applies GT/GTE/LT/LTE. Non-numeric operands are not met.
func compareOrdered(op types.Operator, value, target any) bool {
	nv, nt, ok := asNumbers(value, target)
	if !ok {
		return false
	}
	switch op {
	case types.OpGT:
		return nv > nt
	case types.OpGTE:
		return nv >= nt
	case types.OpLT:
		return nv < nt
	case types.OpLTE:
		return nv <= nt
	}
	return false
}

// compareBetween checks an inclusive two-element [low, high] range.
// A target that is not a two-element list is a malformed tree.
func compareBetween(value, target any) (bool, error) {
	bounds, ok := asList(target)
	if !ok || len(bounds) != 2 {
		return false, fmt.Errorf("%w: BETWEEN requires a two-element [low, high] value", types.ErrConditionEvaluation)
	}
	nv, ok := toFloat64(value)
	if !ok {
		return false, nil
	}
	low, okLow := toFloat64(bounds[0])
	high, okHigh := toFloat64(bounds[1])
	if !okLow || !okHigh {
		return false, fmt.Errorf("%w: BETWEEN bounds must be numeric", types.ErrConditionEvaluation)
	}
	return nv >= low && nv <= high, nil
}

// compareContains tests substring containment when the field value is a
// string, membership when it is a slice. Other field types are not met.
func compareContains(value, target any) bool {
	switch v := value.(type) {
	case string:
		ts, ok := target.(string)
		if !ok {
			return false
		}
		return strings.Contains(v, ts)
	default:
		if elems, ok := asList(value); ok {
			return containsValue(elems, target)
		}
		return false
	}
}

// targetList extracts the membership set for IN/NOT_IN.
// A non-list target is a malformed tree, not a non-match.
func targetList(op types.Operator, target any) ([]any, error) {
	set, ok := asList(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a list value", types.ErrConditionEvaluation, op)
	}
	if len(set) > types.MaxInOperatorValues {
		return nil, fmt.Errorf("%w: %w", types.ErrConditionEvaluation, types.ErrTooManyInValues)
	}
	return set, nil
}

// containsValue checks membership using equality semantics.
func containsValue(set []any, value any) bool {
	for _, elem := range set {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// asList normalizes supported slice types to []any.
// JSON decoding yields []any; typed slices appear from programmatic rules.
func asList(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it is a numeric type.
// Handles float64 from JSON unmarshaling plus int variants from Go callers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
