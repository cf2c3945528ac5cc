// internal/premium/sqlstore.go
package premium

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meridianins/ratekeeper/internal/core/db"
	"github.com/meridianins/ratekeeper/internal/types"
)

// overrideRow mirrors the premium_overrides table.
type overrideRow struct {
	OverrideID      string    `db:"override_id"`
	CalculationID   string    `db:"calculation_id"`
	OriginalPremium float64   `db:"original_premium"`
	ApprovedPremium float64   `db:"approved_premium"`
	Justification   string    `db:"justification"`
	RequestedBy     string    `db:"requested_by"`
	ApprovedBy      string    `db:"approved_by"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}

func (r overrideRow) toOverride() *types.PremiumOverride {
	return &types.PremiumOverride{
		OverrideID:      types.OverrideID(r.OverrideID),
		CalculationID:   types.CalculationID(r.CalculationID),
		OriginalPremium: r.OriginalPremium,
		ApprovedPremium: r.ApprovedPremium,
		Justification:   r.Justification,
		RequestedBy:     r.RequestedBy,
		ApprovedBy:      r.ApprovedBy,
		Status:          types.OverrideStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// SQLOverrideRepository is the OverrideRepository implementation backed by
// the shared configuration database.
type SQLOverrideRepository struct {
	q *db.Queries
}

// NewSQLOverrideRepository creates a SQL-backed override repository.
func NewSQLOverrideRepository(q *db.Queries) *SQLOverrideRepository {
	return &SQLOverrideRepository{q: q}
}

// Save implements OverrideRepository. Upserts on override ID so approval
// updates reuse the same query.
func (r *SQLOverrideRepository) Save(override *types.PremiumOverride) error {
	_, err := r.q.Exec("save-premium-override",
		string(override.OverrideID), string(override.CalculationID),
		override.OriginalPremium, override.ApprovedPremium,
		override.Justification, override.RequestedBy, override.ApprovedBy,
		string(override.Status), override.CreatedAt, override.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

// Get implements OverrideRepository.
func (r *SQLOverrideRepository) Get(id types.OverrideID) (*types.PremiumOverride, error) {
	var row overrideRow
	err := r.q.Get("get-premium-override", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrOverrideNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return row.toOverride(), nil
}

// ByCalculation implements OverrideRepository.
func (r *SQLOverrideRepository) ByCalculation(id types.CalculationID) ([]*types.PremiumOverride, error) {
	var rows []overrideRow
	if err := r.q.Select("list-premium-overrides-by-calculation", &rows, string(id)); err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	out := make([]*types.PremiumOverride, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOverride())
	}
	return out, nil
}
