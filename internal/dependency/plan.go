// internal/dependency/plan.go
package dependency

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Execution planning.
 *
 * CreateExecutionPlan detects conflicts, resolves them per the configured
 * strategy, then topologically sorts the surviving rules with Kahn's
 * algorithm over ordering edges restricted to the surviving set.
 *
 * Resolution drops rules only for EXCLUSION and PRIORITY conflicts; a
 * missing prerequisite is advisory (the affected rule stays and its result
 * reflects whatever its condition finds), matching the recoverability
 * posture of the engine.
 *
 * Residual cycles should be impossible because AddDependency enforces
 * acyclicity, but the sort handles them defensively: unsortable rules are
 * logged and appended in request order rather than failing the whole
 * calculation.
 */

// CreateExecutionPlan builds a conflict-resolved, topologically ordered plan.
func (m *Manager) CreateExecutionPlan(ruleIDs []types.RuleID,
	strategy types.ConflictStrategy) (*types.RuleExecutionPlan, error) {

	conflicts, err := m.DetectConflicts(ruleIDs)
	if err != nil {
		return nil, err
	}

	surviving, dropped, err := m.resolveConflicts(ruleIDs, conflicts, strategy)
	if err != nil {
		return nil, err
	}

	order, err := m.topologicalSort(surviving)
	if err != nil {
		return nil, err
	}

	return &types.RuleExecutionPlan{
		ExecutionOrder: order,
		Conflicts:      conflicts,
		Strategy:       strategy,
		Metadata: types.PlanMetadata{
			RequestedRules: len(ruleIDs),
			SurvivingRules: len(order),
			DroppedRules:   dropped,
			CreatedAt:      time.Now().UTC(),
		},
	}, nil
}

// resolveConflicts applies the conflict strategy, returning the surviving
// rules in request order plus the dropped IDs.
func (m *Manager) resolveConflicts(ruleIDs []types.RuleID, conflicts []types.RuleConflict,
	strategy types.ConflictStrategy) (surviving, dropped []types.RuleID, err error) {

	if strategy == types.FailOnConflict && len(conflicts) > 0 {
		descriptions := make([]string, len(conflicts))
		for i, c := range conflicts {
			descriptions[i] = c.Description
		}
		return nil, nil, fmt.Errorf("%w: %s", types.ErrRuleConflict, strings.Join(descriptions, "; "))
	}

	position := make(map[types.RuleID]int, len(ruleIDs))
	for i, id := range ruleIDs {
		position[id] = i
	}

	drop := map[types.RuleID]bool{}
	for _, c := range conflicts {
		if c.Type != types.ConflictExclusion && c.Type != types.ConflictPriority {
			continue
		}
		keep, ok, err := m.pickSurvivor(c.RuleIDs, position, strategy)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		for _, id := range c.RuleIDs {
			if id != keep {
				drop[id] = true
			}
		}
	}

	for _, id := range ruleIDs {
		if drop[id] {
			dropped = append(dropped, id)
		} else {
			surviving = append(surviving, id)
		}
	}
	return surviving, dropped, nil
}

// pickSurvivor selects the rule kept from one conflicting set.
// Returns ok=false for AGGREGATE, which keeps every rule.
func (m *Manager) pickSurvivor(ids []types.RuleID, position map[types.RuleID]int,
	strategy types.ConflictStrategy) (types.RuleID, bool, error) {

	switch strategy {
	case types.PriorityBased:
		best := ids[0]
		bestPriority, err := m.store.Priority(best)
		if err != nil {
			return "", false, err
		}
		for _, id := range ids[1:] {
			p, err := m.store.Priority(id)
			if err != nil {
				return "", false, err
			}
			// Ties keep the earlier-requested rule
			if p > bestPriority || (p == bestPriority && position[id] < position[best]) {
				best, bestPriority = id, p
			}
		}
		return best, true, nil

	case types.FirstMatch:
		best := ids[0]
		for _, id := range ids[1:] {
			if position[id] < position[best] {
				best = id
			}
		}
		return best, true, nil

	case types.LastMatch:
		best := ids[0]
		for _, id := range ids[1:] {
			if position[id] > position[best] {
				best = id
			}
		}
		return best, true, nil

	default: // AGGREGATE keeps all; effects compose during execution
		return "", false, nil
	}
}

// topologicalSort orders rules with Kahn's algorithm over ordering edges
// restricted to the given set. Input order breaks ties, keeping plans
// deterministic. Residual cycles are appended in request order.
func (m *Manager) topologicalSort(ruleIDs []types.RuleID) ([]types.RuleID, error) {
	inSet := make(map[types.RuleID]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		inSet[id] = true
	}

	// inDegree counts unsatisfied ordering dependencies inside the set
	inDegree := make(map[types.RuleID]int, len(ruleIDs))
	dependents := make(map[types.RuleID][]types.RuleID)
	for _, id := range ruleIDs {
		edges, err := m.store.Dependencies(id)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !e.Type.Ordering() || !inSet[e.DependencyRuleID] {
				continue
			}
			inDegree[id]++
			dependents[e.DependencyRuleID] = append(dependents[e.DependencyRuleID], id)
		}
	}

	order := make([]types.RuleID, 0, len(ruleIDs))
	emitted := make(map[types.RuleID]bool, len(ruleIDs))
	for len(order) < len(ruleIDs) {
		progressed := false
		for _, id := range ruleIDs {
			if emitted[id] || inDegree[id] != 0 {
				continue
			}
			emitted[id] = true
			order = append(order, id)
			for _, dep := range dependents[id] {
				inDegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if len(order) < len(ruleIDs) {
		var remaining []types.RuleID
		for _, id := range ruleIDs {
			if !emitted[id] {
				remaining = append(remaining, id)
			}
		}
		m.logger.Warn("residual dependency cycle, appending in request order",
			"rules", joinIDs(remaining),
		)
		order = append(order, remaining...)
	}

	return order, nil
}

// PartitionLevels groups a topologically ordered rule list into dependency
// levels: every rule's PREREQUISITE dependencies sit in an earlier level.
// The HYBRID strategy runs each level in parallel and folds context between
// levels.
func (m *Manager) PartitionLevels(order []types.RuleID) ([][]types.RuleID, error) {
	inSet := make(map[types.RuleID]bool, len(order))
	for _, id := range order {
		inSet[id] = true
	}

	level := make(map[types.RuleID]int, len(order))
	maxLevel := 0
	for _, id := range order {
		edges, err := m.store.Dependencies(id)
		if err != nil {
			return nil, err
		}
		l := 0
		for _, e := range edges {
			if e.Type != types.DepPrerequisite || !inSet[e.DependencyRuleID] {
				continue
			}
			if dl, ok := level[e.DependencyRuleID]; ok && dl+1 > l {
				l = dl + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]types.RuleID, maxLevel+1)
	for _, id := range order {
		levels[level[id]] = append(levels[level[id]], id)
	}
	return levels, nil
}
