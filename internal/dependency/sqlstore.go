// internal/dependency/sqlstore.go
package dependency

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/meridianins/ratekeeper/internal/core/db"
	"github.com/meridianins/ratekeeper/internal/types"
)

// SQLStore is the Store implementation backed by the shared configuration
// database. Edges and priorities live in rule_dependencies and
// rule_priorities; named queries come from the embedded pricing.sql.
type SQLStore struct {
	q *db.Queries
}

// NewSQLStore creates a SQL-backed dependency store.
func NewSQLStore(q *db.Queries) *SQLStore {
	return &SQLStore{q: q}
}

// AddDependency implements Store.
func (s *SQLStore) AddDependency(dep types.RuleDependency) error {
	_, err := s.q.Exec("add-rule-dependency",
		string(dep.DependentRuleID), string(dep.DependencyRuleID),
		string(dep.Type), dep.Condition, dep.Description)
	if err != nil {
		return fmt.Errorf("failed to add dependency: %w", err)
	}
	return nil
}

// RemoveDependency implements Store.
func (s *SQLStore) RemoveDependency(dependent, dependency types.RuleID, depType types.DependencyType) error {
	res, err := s.q.Exec("remove-rule-dependency",
		string(dependent), string(dependency), string(depType))
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrValidation
	}
	return nil
}

// Dependencies implements Store.
func (s *SQLStore) Dependencies(ruleID types.RuleID) ([]types.RuleDependency, error) {
	var rows []types.RuleDependency
	if err := s.q.Select("list-rule-dependencies", &rows, string(ruleID)); err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	return rows, nil
}

// AllDependencies implements Store.
func (s *SQLStore) AllDependencies() ([]types.RuleDependency, error) {
	var rows []types.RuleDependency
	if err := s.q.Select("list-all-rule-dependencies", &rows); err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	return rows, nil
}

// Priority implements Store. Unset priorities default to 0.
func (s *SQLStore) Priority(ruleID types.RuleID) (int, error) {
	var priority int
	err := s.q.Get("get-rule-priority", &priority, string(ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get priority: %w", err)
	}
	return priority, nil
}

// SetPriority implements Store.
func (s *SQLStore) SetPriority(ruleID types.RuleID, priority int) error {
	if _, err := s.q.Exec("set-rule-priority", string(ruleID), priority); err != nil {
		return fmt.Errorf("failed to set priority: %w", err)
	}
	return nil
}
