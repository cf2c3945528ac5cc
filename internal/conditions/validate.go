// internal/conditions/validate.go
package conditions

import (
	"fmt"
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Condition tree validation and cost estimation.
 *
 * Validate enforces structural invariants at rule load time so malformed
 * trees are rejected before any premium calculation touches them: child
 * counts per logical operator, known comparison operators, depth and
 * IN-value limits.
 *
 * EstimateCost computes a relative evaluation cost for a tree. The
 * OPTIMIZED execution strategy orders rules cheap-first within a
 * dependency level so short-circuiting batches of non-matching rules
 * costs as little as possible.
 *
 * Cost formula per leaf: lookup_cost + operator_cost. Logical nodes add a
 * small constant plus their children. Constants are relative weights, not
 * wall-clock figures.
 */

// Relative operator costs for cheap-first ordering.
const (
	CostIsNull    = 1
	CostEquals    = 5
	CostNotEquals = 5
	CostOrdered   = 7
	CostIn        = 8
	CostBetween   = 8
	CostContains  = 10

	// CostLookupPerSegment charges each dotted path segment traversed.
	CostLookupPerSegment = 2

	// CostLogicalNode charges AND/OR/NOT dispatch.
	CostLogicalNode = 1
)

// Validate checks structural invariants of a condition tree.
// Run at rule load time; evaluation re-checks defensively.
func Validate(node *types.ConditionNode) error {
	return validateNode(node, 0)
}

func validateNode(node *types.ConditionNode, depth int) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", types.ErrInvalidConditionTree)
	}
	if depth > types.MaxConditionDepth {
		return fmt.Errorf("%w: %w", types.ErrInvalidConditionTree, types.ErrConditionTooDeep)
	}

	switch node.Operator {
	case types.OpAnd, types.OpOr:
		if len(node.Children) == 0 {
			return fmt.Errorf("%w: %s node requires at least one child", types.ErrInvalidConditionTree, node.Operator)
		}
	case types.OpNot:
		if len(node.Children) != 1 {
			return fmt.Errorf("%w: NOT node requires exactly one child, got %d",
				types.ErrInvalidConditionTree, len(node.Children))
		}
	case types.OpEquals, types.OpNotEquals, types.OpGT, types.OpGTE, types.OpLT, types.OpLTE,
		types.OpBetween, types.OpContains, types.OpIsNull:
		return validateLeaf(node)
	case types.OpIn, types.OpNotIn:
		if err := validateLeaf(node); err != nil {
			return err
		}
		if set, ok := asList(node.Value); ok && len(set) > types.MaxInOperatorValues {
			return fmt.Errorf("%w: %w", types.ErrInvalidConditionTree, types.ErrTooManyInValues)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w %q", types.ErrInvalidConditionTree, types.ErrUnknownOperator, node.Operator)
	}

	for _, child := range node.Children {
		if err := validateNode(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func validateLeaf(node *types.ConditionNode) error {
	if node.Field == "" {
		return fmt.Errorf("%w: leaf operator %s requires a field", types.ErrInvalidConditionTree, node.Operator)
	}
	if len(node.Children) != 0 {
		return fmt.Errorf("%w: leaf operator %s cannot have children", types.ErrInvalidConditionTree, node.Operator)
	}
	return nil
}

// EstimateCost computes the relative evaluation cost of a condition tree.
func EstimateCost(node *types.ConditionNode) int {
	if node == nil {
		return 0
	}
	if node.Operator.Logical() {
		cost := CostLogicalNode
		for _, child := range node.Children {
			cost += EstimateCost(child)
		}
		return cost
	}

	lookup := CostLookupPerSegment * (1 + strings.Count(node.Field, "."))

	var opCost int
	switch node.Operator {
	case types.OpIsNull:
		opCost = CostIsNull
	case types.OpEquals:
		opCost = CostEquals
	case types.OpNotEquals:
		opCost = CostNotEquals
	case types.OpGT, types.OpGTE, types.OpLT, types.OpLTE:
		opCost = CostOrdered
	case types.OpIn, types.OpNotIn:
		opCost = CostIn
	case types.OpBetween:
		opCost = CostBetween
	case types.OpContains:
		opCost = CostContains
	default:
		opCost = CostContains
	}

	return lookup + opCost
}
