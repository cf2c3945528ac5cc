// Package types provides domain models shared across RateKeeper components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the pricing core can be embedded without pulling in
// storage or CLI dependencies. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import "time"

// Gender codes used by demographic pricing and actuarial lookups.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderUnspecified Gender = "UNSPECIFIED"

	// GenderUnisex is a lookup fallback key in actuarial tables, never a
	// profile value.
	GenderUnisex Gender = "UNISEX"
)

// BenefitType identifies the product line a premium is priced for.
type BenefitType string

const (
	BenefitNone       BenefitType = ""
	BenefitMedical    BenefitType = "MEDICAL"
	BenefitDental     BenefitType = "DENTAL"
	BenefitVision     BenefitType = "VISION"
	BenefitDisability BenefitType = "DISABILITY"
	BenefitLife       BenefitType = "LIFE"
)

// RiskCategory buckets occupations by hazard level.
type RiskCategory string

const (
	RiskLow      RiskCategory = "LOW"
	RiskMedium   RiskCategory = "MEDIUM"
	RiskHigh     RiskCategory = "HIGH"
	RiskCritical RiskCategory = "CRITICAL"
)

// TableType identifies the kind of actuarial table.
type TableType string

const (
	TableMortality  TableType = "MORTALITY"
	TableMorbidity  TableType = "MORBIDITY"
	TableDisability TableType = "DISABILITY"
)

// DemographicProfile describes the insured for one calculation request.
// Supplied per request; the engine never stores it.
type DemographicProfile struct {
	Age            int            `json:"age"`
	Gender         Gender         `json:"gender"`
	Territory      string         `json:"territory"`
	Occupation     string         `json:"occupation,omitempty"`
	RiskFactors    []string       `json:"risk_factors,omitempty"`
	MedicalHistory map[string]any `json:"medical_history,omitempty"`
	FamilyHistory  map[string]any `json:"family_history,omitempty"`
}

// AgeBracket is a configured age range carrying base and demographic-specific
// pricing multipliers. Overlapping active brackets for the same benefit type
// are tolerated at load time; the demographic calculator logs a warning when
// more than one active bracket matches an age.
type AgeBracket struct {
	MinAge           int                      `json:"min_age"`
	MaxAge           int                      `json:"max_age"`
	BaseFactor       float64                  `json:"base_factor"`
	GenderFactors    map[Gender]float64       `json:"gender_factors,omitempty"`
	TerritoryFactors map[string]float64       `json:"territory_factors,omitempty"`
	RiskAdjustments  map[RiskCategory]float64 `json:"risk_adjustments,omitempty"`
	BenefitFactors   map[BenefitType]float64  `json:"benefit_factors,omitempty"`
	EffectiveDate    time.Time                `json:"effective_date"`
	ExpiryDate       *time.Time               `json:"expiry_date,omitempty"`
	IsActive         bool                     `json:"is_active"`
}

// Matches reports whether age falls inside the bracket range (inclusive).
func (b AgeBracket) Matches(age int) bool {
	return age >= b.MinAge && age <= b.MaxAge
}

// Validate checks structural invariants of a bracket definition.
func (b AgeBracket) Validate() error {
	if b.MinAge < 0 || b.MinAge > b.MaxAge {
		return ErrValidation
	}
	if b.BaseFactor <= 0 {
		return ErrValidation
	}
	return nil
}

// ActuarialTable holds mortality/morbidity/disability rates keyed by age and
// gender. Lookup semantics (exact, UNISEX fallback, interpolation, nearest)
// are implemented by the demographic package.
type ActuarialTable struct {
	Type          TableType                  `json:"table_type"`
	Rates         map[int]map[Gender]float64 `json:"rates"`
	Version       string                     `json:"version"`
	EffectiveDate time.Time                  `json:"effective_date"`
}

// Adjustment records one applied step of the demographic pricing pipeline.
// Steps whose factor is exactly 1.0 are skipped and produce no entry.
type Adjustment struct {
	Type          string  `json:"type"`
	BaseValue     float64 `json:"base_value"`
	AdjustedValue float64 `json:"adjusted_value"`
	Factor        float64 `json:"factor"`
	Description   string  `json:"description"`
	Source        string  `json:"source"`
}

// DemographicResult is the output of one demographic pricing calculation.
type DemographicResult struct {
	BasePremium  float64      `json:"base_premium"`
	FinalPremium float64      `json:"final_premium"`
	TotalFactor  float64      `json:"total_factor"`
	Adjustments  []Adjustment `json:"adjustments"`
}

// CoverageLimits carries configured coverage thresholds consumed by
// benefit-specific post-processing.
type CoverageLimits struct {
	AnnualLimit float64 `json:"annual_limit"`
}

// PricingComponents holds the profile-level factors applied by the premium
// calculator after orchestration.
type PricingComponents struct {
	DeductibleFactor float64 `json:"deductible_factor,omitempty"`
	CopayFactor      float64 `json:"copay_factor,omitempty"`
	DiscountRate     float64 `json:"discount_rate,omitempty"`
	CommissionRate   float64 `json:"commission_rate,omitempty"`
}

// CalculationRequest is the library-level input contract for a full premium
// calculation. InputData is consumed by rule conditions and formulas.
type CalculationRequest struct {
	BasePremium      float64             `json:"base_premium"`
	ProfileID        string              `json:"profile_id,omitempty"`
	Profile          *DemographicProfile `json:"profile,omitempty"`
	BenefitType      BenefitType         `json:"benefit_type,omitempty"`
	IncludeActuarial bool                `json:"include_actuarial,omitempty"`
	InputData        map[string]any      `json:"input_data,omitempty"`
	RuleIDs          []RuleID            `json:"rule_ids,omitempty"`
	CoverageLimits   CoverageLimits      `json:"coverage_limits,omitempty"`
	Components       PricingComponents   `json:"pricing_components"`
	Options          map[string]any      `json:"calculation_options,omitempty"`
}

// CalculationResult wraps the orchestration output with component-adjusted
// figures. FinalPremium is authoritative only when Errors is empty.
type CalculationResult struct {
	CalculationID CalculationID        `json:"calculation_id"`
	BasePremium   float64              `json:"base_premium"`
	FinalPremium  float64              `json:"final_premium"`
	Orchestration *OrchestrationResult `json:"orchestration,omitempty"`
	Errors        []string             `json:"errors"`
	Warnings      []string             `json:"warnings"`
}

// OverrideStatus tracks the approval state of a premium override.
type OverrideStatus string

const (
	OverridePending  OverrideStatus = "PENDING"
	OverrideApproved OverrideStatus = "APPROVED"
	OverrideRejected OverrideStatus = "REJECTED"
)

// PremiumOverride is a human-approved replacement of an engine-computed
// premium, recorded against the calculation identity. Each override carries
// its own expiry.
type PremiumOverride struct {
	OverrideID      OverrideID     `json:"override_id"`
	CalculationID   CalculationID  `json:"calculation_id"`
	OriginalPremium float64        `json:"original_premium"`
	ApprovedPremium float64        `json:"approved_premium"`
	Justification   string         `json:"justification"`
	RequestedBy     string         `json:"requested_by"`
	ApprovedBy      string         `json:"approved_by,omitempty"`
	Status          OverrideStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// Resource limits enforced by the condition evaluator to keep rule
// evaluation bounded regardless of configuration input.
const (
	// MaxConditionDepth prevents stack exhaustion on pathological trees.
	MaxConditionDepth = 16

	// MaxFieldPathDepth limits dotted field resolution into nested input.
	MaxFieldPathDepth = 8

	// MaxInOperatorValues keeps IN/NOT_IN membership checks linear and small.
	MaxInOperatorValues = 64
)
