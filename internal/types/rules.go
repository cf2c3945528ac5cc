// internal/types/rules.go
package types

import "time"

/*
 * Domain types for pricing rule orchestration.
 *
 * Provides the rule definition (condition tree + impact), the dependency and
 * conflict models consumed by the dependency manager, and the execution plan
 * and result types produced by the orchestration engine. These types are
 * storage-format agnostic - SQL/JSON conversion happens in the store
 * implementations.
 *
 * Key types:
 *   - ConditionNode: Nested boolean expression tree (AND/OR/NOT over leaves)
 *   - AdvancedRule: Immutable rule snapshot used for one evaluation
 *   - RuleDependency: Directed prerequisite/exclusion/conditional/sequence edge
 *   - RuleExecutionPlan: Conflict-resolved, topologically ordered rule list
 *   - OrchestrationResult: Final premium with full per-rule audit detail
 */

// Operator identifies a comparison or logical operator in a condition tree.
type Operator string

const (
	OpEquals    Operator = "EQUALS"
	OpNotEquals Operator = "NOT_EQUALS"
	OpGT        Operator = "GT"
	OpGTE       Operator = "GTE"
	OpLT        Operator = "LT"
	OpLTE       Operator = "LTE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT_IN"
	OpBetween   Operator = "BETWEEN"
	OpContains  Operator = "CONTAINS"
	OpIsNull    Operator = "IS_NULL"

	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"
)

// Logical reports whether the operator is an internal-node operator.
func (o Operator) Logical() bool {
	return o == OpAnd || o == OpOr || o == OpNot
}

// ConditionNode is a node in a boolean expression tree. A leaf carries
// Field/Operator/Value; an internal node carries a logical Operator and
// Children. Immutable once constructed; owned by the rule containing it.
// Invariants: NOT has exactly one child, AND/OR have at least one.
type ConditionNode struct {
	Field    string           `json:"field,omitempty"`
	Operator Operator         `json:"operator"`
	Value    any              `json:"value,omitempty"`
	Children []*ConditionNode `json:"conditions,omitempty"`
}

// IsLeaf reports whether the node is a comparison leaf.
func (n *ConditionNode) IsLeaf() bool {
	return !n.Operator.Logical()
}

// ImpactType identifies how a matched rule's impact is interpreted.
type ImpactType string

const (
	ImpactPercentage  ImpactType = "PERCENTAGE"
	ImpactFixedAmount ImpactType = "FIXED_AMOUNT"
	ImpactMultiplier  ImpactType = "MULTIPLIER"
	ImpactFormula     ImpactType = "FORMULA"
)

// RuleImpact is the effect a rule has once its condition is satisfied.
// Formula is consulted only when Type is FORMULA.
type RuleImpact struct {
	Type        ImpactType `json:"type"`
	Value       float64    `json:"value"`
	Formula     string     `json:"formula,omitempty"`
	Description string     `json:"description,omitempty"`
}

// AdvancedRule is an immutable rule snapshot used for one evaluation.
// The authoritative definition lives in configuration storage and is loaded
// by ID through a RuleSource. Higher Priority is more authoritative during
// conflict resolution.
type AdvancedRule struct {
	RuleID      RuleID         `json:"rule_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Condition   *ConditionNode `json:"condition"`
	Impact      RuleImpact     `json:"impact"`
	Priority    int            `json:"priority"`
}

// DependencyType classifies a directed relationship between two rules.
// PREREQUISITE and SEQUENCE are ordering constraints; EXCLUSION and
// CONDITIONAL are not.
type DependencyType string

const (
	DepPrerequisite DependencyType = "PREREQUISITE"
	DepExclusion    DependencyType = "EXCLUSION"
	DepConditional  DependencyType = "CONDITIONAL"
	DepSequence     DependencyType = "SEQUENCE"
)

// Ordering reports whether the dependency type constrains execution order.
func (t DependencyType) Ordering() bool {
	return t == DepPrerequisite || t == DepSequence
}

// RuleDependency is a directed edge dependent -> dependency. Multiple edges
// between the same pair are allowed if of different types. Condition is a
// JSON string consulted only for CONDITIONAL edges.
type RuleDependency struct {
	DependentRuleID  RuleID         `json:"dependent_rule_id" db:"dependent_rule_id"`
	DependencyRuleID RuleID         `json:"dependency_rule_id" db:"dependency_rule_id"`
	Type             DependencyType `json:"dependency_type" db:"dependency_type"`
	Condition        string         `json:"condition,omitempty" db:"condition"`
	Description      string         `json:"description,omitempty" db:"description"`
}

// ConflictType classifies a detected inconsistency among a requested rule set.
type ConflictType string

const (
	ConflictExclusion           ConflictType = "EXCLUSION"
	ConflictPriority            ConflictType = "PRIORITY"
	ConflictField               ConflictType = "FIELD"
	ConflictMissingPrerequisite ConflictType = "MISSING_PREREQUISITE"
)

// Severity grades how serious a detected conflict is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RuleConflict is a detected inconsistency. ConflictID is derived from the
// participant rule IDs so repeated detection is idempotent. Never persisted.
type RuleConflict struct {
	ConflictID          string       `json:"conflict_id"`
	RuleIDs             []RuleID     `json:"rule_ids"`
	Type                ConflictType `json:"conflict_type"`
	Severity            Severity     `json:"severity"`
	Description         string       `json:"description"`
	SuggestedResolution string       `json:"suggested_resolution,omitempty"`
}

// ConflictStrategy selects how detected conflicts are resolved during
// execution planning.
type ConflictStrategy string

const (
	FailOnConflict ConflictStrategy = "FAIL_ON_CONFLICT"
	PriorityBased  ConflictStrategy = "PRIORITY_BASED"
	FirstMatch     ConflictStrategy = "FIRST_MATCH"
	LastMatch      ConflictStrategy = "LAST_MATCH"
	Aggregate      ConflictStrategy = "AGGREGATE"
)

// ExecutionStrategy selects how the orchestration engine schedules rules.
type ExecutionStrategy string

const (
	StrategySequential ExecutionStrategy = "SEQUENTIAL"
	StrategyParallel   ExecutionStrategy = "PARALLEL"
	StrategyHybrid     ExecutionStrategy = "HYBRID"
	StrategyOptimized  ExecutionStrategy = "OPTIMIZED"
)

// PlanMetadata carries counts and timing recorded during plan construction.
type PlanMetadata struct {
	RequestedRules int       `json:"requested_rules"`
	SurvivingRules int       `json:"surviving_rules"`
	DroppedRules   []RuleID  `json:"dropped_rules,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RuleExecutionPlan is the output of planning: a topologically valid order
// over the surviving rule set plus the conflicts detected before resolution.
// Consumed once by the orchestration engine; not persisted.
type RuleExecutionPlan struct {
	ExecutionOrder []RuleID         `json:"execution_order"`
	Conflicts      []RuleConflict   `json:"conflicts"`
	Strategy       ConflictStrategy `json:"strategy"`
	Metadata       PlanMetadata     `json:"metadata"`
}

// RuleExecutionResult is the per-rule outcome of one evaluation.
// ResultValue is the premium delta and is set only when ImpactApplied.
type RuleExecutionResult struct {
	RuleID        RuleID         `json:"rule_id"`
	RuleName      string         `json:"rule_name"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Success       bool           `json:"success"`
	ConditionMet  bool           `json:"condition_met"`
	ImpactApplied bool           `json:"impact_applied"`
	ResultValue   float64        `json:"result_value"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CacheHit      bool           `json:"cache_hit"`
	Details       map[string]any `json:"execution_details,omitempty"`
}

// CacheStats is a snapshot of rule-result cache activity for one
// orchestration call.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// OrchestrationResult is the engine's final output. Immutable once produced;
// downstream override management consumes FinalPremium and CalculationID.
type OrchestrationResult struct {
	CalculationID         CalculationID         `json:"calculation_id"`
	TotalExecutionTime    time.Duration         `json:"total_execution_time"`
	RulesEvaluated        int                   `json:"rules_evaluated"`
	RulesApplied          int                   `json:"rules_applied"`
	ConflictsDetected     int                   `json:"conflicts_detected"`
	ConflictsResolved     int                   `json:"conflicts_resolved"`
	BasePremium           float64               `json:"base_premium"`
	FinalPremium          float64               `json:"final_premium"`
	TotalAdjustmentFactor float64               `json:"total_adjustment_factor"`
	RuleResults           []RuleExecutionResult `json:"rule_results"`
	Demographic           *DemographicResult    `json:"demographic,omitempty"`
	Plan                  *RuleExecutionPlan    `json:"plan,omitempty"`
	CacheStats            CacheStats            `json:"cache_stats"`
	Errors                []string              `json:"errors"`
	Warnings              []string              `json:"warnings"`
}
