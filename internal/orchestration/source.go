// internal/orchestration/source.go
package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meridianins/ratekeeper/internal/conditions"
	"github.com/meridianins/ratekeeper/internal/core/db"
	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Rule sources.
 *
 * The engine loads immutable rule snapshots by ID through RuleSource; the
 * authoritative definitions live outside the engine. MemoryRuleSource
 * serves programmatic and test configurations; SQLRuleSource reads the
 * rules table, where condition trees and impacts are stored as JSON.
 * Both validate the condition tree at load time so malformed rules are
 * rejected before evaluation.
 */

// RuleSource resolves rule IDs into immutable rule snapshots.
type RuleSource interface {
	Rule(ctx context.Context, id types.RuleID) (*types.AdvancedRule, error)
}

// MemoryRuleSource is a map-backed RuleSource.
type MemoryRuleSource struct {
	rules map[types.RuleID]*types.AdvancedRule
}

// NewMemoryRuleSource builds a source from a rule list, validating each
// condition tree.
func NewMemoryRuleSource(rules []*types.AdvancedRule) (*MemoryRuleSource, error) {
	byID := make(map[types.RuleID]*types.AdvancedRule, len(rules))
	for _, r := range rules {
		if r.RuleID == "" {
			return nil, fmt.Errorf("%w: rule without ID", types.ErrValidation)
		}
		if err := conditions.Validate(r.Condition); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.RuleID, err)
		}
		byID[r.RuleID] = r
	}
	return &MemoryRuleSource{rules: byID}, nil
}

// Rule implements RuleSource.
func (s *MemoryRuleSource) Rule(_ context.Context, id types.RuleID) (*types.AdvancedRule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return rule, nil
}

// ruleRow mirrors the rules table. Condition and impact are JSON columns.
type ruleRow struct {
	RuleID        string  `db:"rule_id"`
	Name          string  `db:"name"`
	Description   string  `db:"description"`
	ConditionJSON string  `db:"condition_json"`
	ImpactType    string  `db:"impact_type"`
	ImpactValue   float64 `db:"impact_value"`
	ImpactFormula string  `db:"impact_formula"`
	Priority      int     `db:"priority"`
}

// SQLRuleSource reads rule definitions from the configuration database.
type SQLRuleSource struct {
	q *db.Queries
}

// NewSQLRuleSource creates a SQL-backed rule source.
func NewSQLRuleSource(q *db.Queries) *SQLRuleSource {
	return &SQLRuleSource{q: q}
}

// Rule implements RuleSource.
func (s *SQLRuleSource) Rule(_ context.Context, id types.RuleID) (*types.AdvancedRule, error) {
	var row ruleRow
	err := s.q.Get("get-rule", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
	}

	var condition types.ConditionNode
	if err := json.Unmarshal([]byte(row.ConditionJSON), &condition); err != nil {
		return nil, fmt.Errorf("rule %s: invalid condition JSON: %w", id, err)
	}
	if err := conditions.Validate(&condition); err != nil {
		return nil, fmt.Errorf("rule %s: %w", id, err)
	}

	return &types.AdvancedRule{
		RuleID:      types.RuleID(row.RuleID),
		Name:        row.Name,
		Description: row.Description,
		Condition:   &condition,
		Impact: types.RuleImpact{
			Type:    types.ImpactType(row.ImpactType),
			Value:   row.ImpactValue,
			Formula: row.ImpactFormula,
		},
		Priority: row.Priority,
	}, nil
}
