package types

import "errors"

// Sentinel errors for RateKeeper operations.
var (
	// ErrValidation indicates a malformed request or configuration record
	// (negative premium, inverted age range, missing justification).
	// Surfaced immediately to the caller, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrCircularDependency indicates an ordering edge would create a cycle
	// among PREREQUISITE/SEQUENCE dependencies.
	ErrCircularDependency = errors.New("circular rule dependency")

	// ErrRuleConflict indicates planning aborted under FAIL_ON_CONFLICT.
	ErrRuleConflict = errors.New("unresolved rule conflicts")

	// ErrConditionEvaluation indicates a malformed condition tree
	// (unknown operator, wrong child count, bad BETWEEN operand).
	ErrConditionEvaluation = errors.New("condition evaluation failed")

	// ErrUnknownOperator indicates a condition operator outside the
	// supported set.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrInvalidConditionTree indicates a condition tree failed structural
	// validation at rule load time.
	ErrInvalidConditionTree = errors.New("invalid condition tree")

	// ErrConditionTooDeep indicates a condition tree exceeds MaxConditionDepth.
	ErrConditionTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrTooManyInValues indicates an IN/NOT_IN operator exceeds
	// MaxInOperatorValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrNoApplicableBracket indicates no active age bracket matches the
	// profile age. Fatal to the demographic step; no default premium exists.
	ErrNoApplicableBracket = errors.New("no applicable age bracket")

	// ErrOrchestrationTimeout indicates the whole orchestration call
	// exceeded its configured deadline. Partial results are discarded.
	ErrOrchestrationTimeout = errors.New("orchestration deadline exceeded")

	// ErrFormulaParse indicates an impact formula could not be parsed.
	ErrFormulaParse = errors.New("formula parse failed")

	// ErrFormulaEval indicates an impact formula failed during evaluation
	// (unknown variable or function, division by zero).
	ErrFormulaEval = errors.New("formula evaluation failed")

	// ErrRuleNotFound indicates a requested rule ID has no definition.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrOverrideNotFound indicates an unknown override ID.
	ErrOverrideNotFound = errors.New("override not found")

	// ErrMissingJustification indicates an override request without a
	// justification text.
	ErrMissingJustification = errors.New("override justification required")
)
