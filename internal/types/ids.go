package types

import (
	"time"

	"github.com/google/uuid"
)

// RuleID identifies a pricing rule. String alias enables type safety while
// maintaining JSON string serialization. Rule IDs are opaque: configured
// rules commonly use human-assigned identifiers, generated ones use UUIDv7.
type RuleID string

// CalculationID identifies one premium calculation. UUIDv7 time-ordering
// keeps audit records clustered by creation time.
type CalculationID string

// OverrideID identifies one premium override request.
type OverrideID string

// NewCalculationID generates a UUIDv7 calculation identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewCalculationID() CalculationID {
	return CalculationID(uuid.Must(uuid.NewV7()).String())
}

// NewOverrideID generates a UUIDv7 override identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewOverrideID() OverrideID {
	return OverrideID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleID generates a UUIDv7 rule identifier for programmatic rule creation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseCalculationID validates and converts a string to CalculationID.
// Rejects malformed UUIDs to prevent invalid IDs from entering audit records.
func ParseCalculationID(s string) (CalculationID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return CalculationID(s), nil
}

// CalculationIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Enables time-based audit queries without a database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func CalculationIDTime(id CalculationID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
