// internal/dependency/manager.go
package dependency

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Rule dependency management and conflict detection.
 *
 * AddDependency guards the ordering subgraph (PREREQUISITE/SEQUENCE) against
 * cycles with a reachability search before inserting; a rejected insertion
 * leaves the graph unchanged. EXCLUSION and CONDITIONAL edges carry no
 * ordering semantics and are exempt.
 *
 * DetectConflicts runs four independent checks over a requested rule set
 * and returns their union:
 *   - Exclusion: both ends of an EXCLUSION edge requested together (HIGH)
 *   - Priority: more than one requested rule sharing a priority (MEDIUM)
 *   - Field: explicit no-op extension point (needs rule definitions,
 *     which this manager deliberately does not hold)
 *   - Missing prerequisite: a PREREQUISITE outside the requested set (HIGH)
 *
 * Conflict IDs are derived from sorted participant rule IDs so repeated
 * detection over the same set is idempotent.
 */

// Manager coordinates the dependency graph and priority table behind the
// injected Store.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a dependency manager over a store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// SetPriority records a rule's priority (higher is more authoritative).
func (m *Manager) SetPriority(ruleID types.RuleID, priority int) error {
	return m.store.SetPriority(ruleID, priority)
}

// AddDependency inserts a dependency edge after cycle checking.
// Ordering edges (PREREQUISITE/SEQUENCE) that would close a cycle fail with
// types.ErrCircularDependency and leave the graph unchanged.
func (m *Manager) AddDependency(dependent, dependency types.RuleID,
	depType types.DependencyType, condition, description string) error {

	if dependent == "" || dependency == "" {
		return fmt.Errorf("%w: dependency endpoints required", types.ErrValidation)
	}
	if dependent == dependency {
		return fmt.Errorf("%w: rule %s cannot depend on itself", types.ErrCircularDependency, dependent)
	}

	if depType.Ordering() {
		reachable, err := m.reachesOrdering(dependency, dependent)
		if err != nil {
			return err
		}
		if reachable {
			return fmt.Errorf("%w: %s -> %s closes a cycle", types.ErrCircularDependency, dependent, dependency)
		}
	}

	return m.store.AddDependency(types.RuleDependency{
		DependentRuleID:  dependent,
		DependencyRuleID: dependency,
		Type:             depType,
		Condition:        condition,
		Description:      description,
	})
}

// RemoveDependency deletes an edge by its identifying triple.
func (m *Manager) RemoveDependency(dependent, dependency types.RuleID, depType types.DependencyType) error {
	return m.store.RemoveDependency(dependent, dependency, depType)
}

// reachesOrdering reports whether target is reachable from start following
// existing PREREQUISITE/SEQUENCE edges.
func (m *Manager) reachesOrdering(start, target types.RuleID) (bool, error) {
	visited := map[types.RuleID]bool{}
	stack := []types.RuleID{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		edges, err := m.store.Dependencies(current)
		if err != nil {
			return false, err
		}
		for _, e := range edges {
			if !e.Type.Ordering() {
				continue
			}
			if e.DependencyRuleID == target {
				return true, nil
			}
			stack = append(stack, e.DependencyRuleID)
		}
	}
	return false, nil
}

// DetectConflicts runs all conflict checks over the requested rule set.
func (m *Manager) DetectConflicts(ruleIDs []types.RuleID) ([]types.RuleConflict, error) {
	inSet := make(map[types.RuleID]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		inSet[id] = true
	}

	var conflicts []types.RuleConflict

	exclusion, err := m.checkExclusionConflicts(ruleIDs, inSet)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, exclusion...)

	priority, err := m.checkPriorityConflicts(ruleIDs)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, priority...)

	conflicts = append(conflicts, m.checkFieldConflicts(ruleIDs)...)

	missing, err := m.checkMissingPrerequisites(ruleIDs, inSet)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, missing...)

	return conflicts, nil
}

// checkExclusionConflicts finds EXCLUSION edges with both ends requested.
// Deduplicated by the ordered pair so the edge direction does not matter.
func (m *Manager) checkExclusionConflicts(ruleIDs []types.RuleID, inSet map[types.RuleID]bool) ([]types.RuleConflict, error) {
	seen := map[string]bool{}
	var conflicts []types.RuleConflict

	for _, id := range ruleIDs {
		edges, err := m.store.Dependencies(id)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Type != types.DepExclusion || !inSet[e.DependencyRuleID] {
				continue
			}
			a, b := orderPair(id, e.DependencyRuleID)
			conflictID := fmt.Sprintf("exclusion:%s:%s", a, b)
			if seen[conflictID] {
				continue
			}
			seen[conflictID] = true
			conflicts = append(conflicts, types.RuleConflict{
				ConflictID:          conflictID,
				RuleIDs:             []types.RuleID{a, b},
				Type:                types.ConflictExclusion,
				Severity:            types.SeverityHigh,
				Description:         fmt.Sprintf("rules %s and %s are mutually exclusive", a, b),
				SuggestedResolution: "keep the higher-priority rule or remove one from the request",
			})
		}
	}
	return conflicts, nil
}

// checkPriorityConflicts flags priority values shared by multiple rules.
func (m *Manager) checkPriorityConflicts(ruleIDs []types.RuleID) ([]types.RuleConflict, error) {
	byPriority := map[int][]types.RuleID{}
	for _, id := range ruleIDs {
		p, err := m.store.Priority(id)
		if err != nil {
			return nil, err
		}
		byPriority[p] = append(byPriority[p], id)
	}

	values := make([]int, 0, len(byPriority))
	for p := range byPriority {
		values = append(values, p)
	}
	sort.Ints(values)

	var conflicts []types.RuleConflict
	for _, p := range values {
		group := byPriority[p]
		if len(group) < 2 {
			continue
		}
		sorted := append([]types.RuleID(nil), group...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		conflicts = append(conflicts, types.RuleConflict{
			ConflictID:          fmt.Sprintf("priority:%d:%s", p, joinIDs(sorted)),
			RuleIDs:             sorted,
			Type:                types.ConflictPriority,
			Severity:            types.SeverityMedium,
			Description:         fmt.Sprintf("%d rules share priority %d", len(group), p),
			SuggestedResolution: "assign distinct priorities to disambiguate resolution order",
		})
	}
	return conflicts, nil
}

// checkFieldConflicts is an intentional extension point, not a gap: field
// overlap detection needs the rule definitions (which fields each impact
// writes), and this manager holds only the dependency graph. Callers that
// need it inject a richer detector.
func (m *Manager) checkFieldConflicts(_ []types.RuleID) []types.RuleConflict {
	return nil
}

// checkMissingPrerequisites flags requested rules whose PREREQUISITE is not
// part of the request.
func (m *Manager) checkMissingPrerequisites(ruleIDs []types.RuleID, inSet map[types.RuleID]bool) ([]types.RuleConflict, error) {
	var conflicts []types.RuleConflict
	for _, id := range ruleIDs {
		edges, err := m.store.Dependencies(id)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Type != types.DepPrerequisite || inSet[e.DependencyRuleID] {
				continue
			}
			conflicts = append(conflicts, types.RuleConflict{
				ConflictID:          fmt.Sprintf("missing_prereq:%s:%s", id, e.DependencyRuleID),
				RuleIDs:             []types.RuleID{id},
				Type:                types.ConflictMissingPrerequisite,
				Severity:            types.SeverityHigh,
				Description:         fmt.Sprintf("rule %s requires prerequisite %s which is not requested", id, e.DependencyRuleID),
				SuggestedResolution: fmt.Sprintf("add rule %s to the request", e.DependencyRuleID),
			})
		}
	}
	return conflicts, nil
}

func orderPair(a, b types.RuleID) (types.RuleID, types.RuleID) {
	if b < a {
		return b, a
	}
	return a, b
}

func joinIDs(ids []types.RuleID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
