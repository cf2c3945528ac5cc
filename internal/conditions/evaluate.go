// internal/conditions/evaluate.go
package conditions

import (
	"fmt"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Condition tree evaluation.
 *
 * Evaluates a types.ConditionNode tree against a string-keyed input record
 * with short-circuit semantics: AND stops on first non-match, OR stops on
 * first match, NOT negates its single child.
 *
 * Evaluation flow per leaf:
 *   1. Resolve field from input (supports dotted paths into nested maps)
 *   2. IS_NULL: true when absent or explicitly null
 *   3. Any other operator on an absent field: not met (fails closed)
 *   4. Compare resolved value against the condition value
 *
 * Failure policy: malformed trees (unknown operator, wrong child count,
 * bad BETWEEN/IN operands) return an error wrapping
 * types.ErrConditionEvaluation. They never silently default to a boolean.
 * Type mismatches on ordered comparisons are not malformations: the leaf
 * is simply not met.
 *
 * Determinism: same tree plus same input always yields the same boolean;
 * evaluation has no side effects.
 */

// Evaluate checks whether the condition tree is satisfied by the input record.
func Evaluate(node *types.ConditionNode, input map[string]any) (bool, error) {
	return evaluateNode(node, input, 0)
}

func evaluateNode(node *types.ConditionNode, input map[string]any, depth int) (bool, error) {
	if node == nil {
		return false, fmt.Errorf("%w: nil node", types.ErrConditionEvaluation)
	}
	if depth > types.MaxConditionDepth {
		return false, fmt.Errorf("%w: %w", types.ErrConditionEvaluation, types.ErrConditionTooDeep)
	}

	switch node.Operator {
	case types.OpAnd:
		if len(node.Children) == 0 {
			return false, fmt.Errorf("%w: AND node requires at least one child", types.ErrConditionEvaluation)
		}
		for _, child := range node.Children {
			met, err := evaluateNode(child, input, depth+1)
			if err != nil {
				return false, err
			}
			if !met {
				return false, nil
			}
		}
		return true, nil

	case types.OpOr:
		if len(node.Children) == 0 {
			return false, fmt.Errorf("%w: OR node requires at least one child", types.ErrConditionEvaluation)
		}
		for _, child := range node.Children {
			met, err := evaluateNode(child, input, depth+1)
			if err != nil {
				return false, err
			}
			if met {
				return true, nil
			}
		}
		return false, nil

	case types.OpNot:
		if len(node.Children) != 1 {
			return false, fmt.Errorf("%w: NOT node requires exactly one child, got %d",
				types.ErrConditionEvaluation, len(node.Children))
		}
		met, err := evaluateNode(node.Children[0], input, depth+1)
		if err != nil {
			return false, err
		}
		return !met, nil

	default:
		return evaluateLeaf(node, input)
	}
}

// evaluateLeaf resolves the leaf's field from the input record and applies
// the comparison operator. Absent fields fail closed except for IS_NULL.
func evaluateLeaf(node *types.ConditionNode, input map[string]any) (bool, error) {
	if len(node.Children) != 0 {
		return false, fmt.Errorf("%w: leaf operator %s cannot have children",
			types.ErrConditionEvaluation, node.Operator)
	}

	value, found := Resolve(node.Field, input)

	if node.Operator == types.OpIsNull {
		return !found || value == nil, nil
	}

	if !found || value == nil {
		return false, nil
	}

	return compare(node.Operator, value, node.Value)
}
