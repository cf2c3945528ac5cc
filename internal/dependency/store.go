// internal/dependency/store.go
package dependency

import (
	"sync"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Dependency graph storage.
 *
 * The manager's algorithms run against a small Store interface so the same
 * planning logic works over an in-process map (tests, single instance) or a
 * shared SQL store (multi-instance deployment). Mutation is an
 * administrative operation assumed to happen outside concurrent
 * orchestration calls; MemoryStore still takes a coarse RWMutex so reads
 * during planning are always consistent.
 */

// Store holds rule dependency edges and rule priorities.
type Store interface {
	// AddDependency inserts an edge. Duplicate (dependent, dependency, type)
	// triples are rejected with types.ErrValidation.
	AddDependency(dep types.RuleDependency) error

	// RemoveDependency deletes an edge by its identifying triple.
	RemoveDependency(dependent, dependency types.RuleID, depType types.DependencyType) error

	// Dependencies lists the outgoing edges of a dependent rule.
	Dependencies(ruleID types.RuleID) ([]types.RuleDependency, error)

	// AllDependencies lists every stored edge.
	AllDependencies() ([]types.RuleDependency, error)

	// Priority returns a rule's priority, defaulting to 0 when unset.
	Priority(ruleID types.RuleID) (int, error)

	// SetPriority records a rule's priority.
	SetPriority(ruleID types.RuleID, priority int) error
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu         sync.RWMutex
	deps       map[types.RuleID][]types.RuleDependency
	priorities map[types.RuleID]int
}

// NewMemoryStore creates an empty in-memory dependency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deps:       make(map[types.RuleID][]types.RuleDependency),
		priorities: make(map[types.RuleID]int),
	}
}

// AddDependency implements Store.
func (s *MemoryStore) AddDependency(dep types.RuleDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.deps[dep.DependentRuleID] {
		if existing.DependencyRuleID == dep.DependencyRuleID && existing.Type == dep.Type {
			return types.ErrValidation
		}
	}
	s.deps[dep.DependentRuleID] = append(s.deps[dep.DependentRuleID], dep)
	return nil
}

// RemoveDependency implements Store.
func (s *MemoryStore) RemoveDependency(dependent, dependency types.RuleID, depType types.DependencyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.deps[dependent]
	for i, e := range edges {
		if e.DependencyRuleID == dependency && e.Type == depType {
			s.deps[dependent] = append(edges[:i:i], edges[i+1:]...)
			return nil
		}
	}
	return types.ErrValidation
}

// Dependencies implements Store.
func (s *MemoryStore) Dependencies(ruleID types.RuleID) ([]types.RuleDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.deps[ruleID]
	out := make([]types.RuleDependency, len(edges))
	copy(out, edges)
	return out, nil
}

// AllDependencies implements Store.
func (s *MemoryStore) AllDependencies() ([]types.RuleDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.RuleDependency
	for _, edges := range s.deps {
		out = append(out, edges...)
	}
	return out, nil
}

// Priority implements Store.
func (s *MemoryStore) Priority(ruleID types.RuleID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priorities[ruleID], nil
}

// SetPriority implements Store.
func (s *MemoryStore) SetPriority(ruleID types.RuleID, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities[ruleID] = priority
	return nil
}
