// internal/premium/override.go
package premium

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Premium override management.
 *
 * An override is a human-approved replacement for an engine-computed
 * premium, recorded against the calculation identity. Overrides start
 * PENDING, require a non-empty justification, and only become effective
 * once APPROVED. Each override carries its own expiry; an expired approval
 * no longer affects the effective premium.
 *
 * The engine never consults overrides during calculation; they are applied
 * at read time through EffectivePremium.
 */

// DefaultOverrideValidity bounds how long an approved override stays
// effective when the request does not specify an expiry.
const DefaultOverrideValidity = 90 * 24 * time.Hour

// OverrideRepository persists premium overrides.
type OverrideRepository interface {
	Save(override *types.PremiumOverride) error
	Get(id types.OverrideID) (*types.PremiumOverride, error)
	ByCalculation(id types.CalculationID) ([]*types.PremiumOverride, error)
}

// MemoryOverrideRepository is a mutex-protected in-memory repository.
type MemoryOverrideRepository struct {
	mu            sync.RWMutex
	byID          map[types.OverrideID]*types.PremiumOverride
	byCalculation map[types.CalculationID][]types.OverrideID
}

// NewMemoryOverrideRepository creates an empty in-memory repository.
func NewMemoryOverrideRepository() *MemoryOverrideRepository {
	return &MemoryOverrideRepository{
		byID:          make(map[types.OverrideID]*types.PremiumOverride),
		byCalculation: make(map[types.CalculationID][]types.OverrideID),
	}
}

// Save implements OverrideRepository. Stores a copy.
func (r *MemoryOverrideRepository) Save(override *types.PremiumOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *override
	if _, exists := r.byID[override.OverrideID]; !exists {
		r.byCalculation[override.CalculationID] =
			append(r.byCalculation[override.CalculationID], override.OverrideID)
	}
	r.byID[override.OverrideID] = &stored
	return nil
}

// Get implements OverrideRepository.
func (r *MemoryOverrideRepository) Get(id types.OverrideID) (*types.PremiumOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	override, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrOverrideNotFound, id)
	}
	out := *override
	return &out, nil
}

// ByCalculation implements OverrideRepository. Results follow save order.
func (r *MemoryOverrideRepository) ByCalculation(id types.CalculationID) ([]*types.PremiumOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byCalculation[id]
	out := make([]*types.PremiumOverride, 0, len(ids))
	for _, oid := range ids {
		override := *r.byID[oid]
		out = append(out, &override)
	}
	return out, nil
}

// OverrideManager handles the override approval workflow.
type OverrideManager struct {
	repo   OverrideRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewOverrideManager creates an override manager.
func NewOverrideManager(repo OverrideRepository, logger *slog.Logger) (*OverrideManager, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideManager{repo: repo, logger: logger, now: time.Now}, nil
}

// OverrideRequest carries the inputs for a new override.
type OverrideRequest struct {
	CalculationID   types.CalculationID
	OriginalPremium float64
	ApprovedPremium float64
	Justification   string
	RequestedBy     string
	ExpiresAt       time.Time
}

// RequestOverride records a PENDING override. The justification is
// mandatory regardless of direction or size of the adjustment.
func (m *OverrideManager) RequestOverride(req OverrideRequest) (*types.PremiumOverride, error) {
	if req.Justification == "" {
		return nil, types.ErrMissingJustification
	}
	if req.CalculationID == "" {
		return nil, fmt.Errorf("%w: calculation ID required", types.ErrValidation)
	}
	if req.ApprovedPremium < 0 {
		return nil, fmt.Errorf("%w: override premium cannot be negative, got %.2f",
			types.ErrValidation, req.ApprovedPremium)
	}

	expires := req.ExpiresAt
	if expires.IsZero() {
		expires = m.now().Add(DefaultOverrideValidity)
	}

	override := &types.PremiumOverride{
		OverrideID:      types.NewOverrideID(),
		CalculationID:   req.CalculationID,
		OriginalPremium: req.OriginalPremium,
		ApprovedPremium: req.ApprovedPremium,
		Justification:   req.Justification,
		RequestedBy:     req.RequestedBy,
		Status:          types.OverridePending,
		CreatedAt:       m.now().UTC(),
		ExpiresAt:       expires,
	}
	if err := m.repo.Save(override); err != nil {
		return nil, err
	}

	m.logger.Info("override requested",
		"override_id", string(override.OverrideID),
		"calculation_id", string(override.CalculationID),
		"requested_by", override.RequestedBy,
	)
	return override, nil
}

// ApproveOverride moves a PENDING override to APPROVED.
func (m *OverrideManager) ApproveOverride(id types.OverrideID, approvedBy string) (*types.PremiumOverride, error) {
	override, err := m.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if override.Status != types.OverridePending {
		return nil, fmt.Errorf("%w: override %s is %s, only PENDING can be approved",
			types.ErrValidation, id, override.Status)
	}

	override.Status = types.OverrideApproved
	override.ApprovedBy = approvedBy
	if err := m.repo.Save(override); err != nil {
		return nil, err
	}

	m.logger.Info("override approved",
		"override_id", string(override.OverrideID),
		"approved_by", approvedBy,
	)
	return override, nil
}

// RejectOverride moves a PENDING override to REJECTED.
func (m *OverrideManager) RejectOverride(id types.OverrideID, rejectedBy string) (*types.PremiumOverride, error) {
	override, err := m.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if override.Status != types.OverridePending {
		return nil, fmt.Errorf("%w: override %s is %s, only PENDING can be rejected",
			types.ErrValidation, id, override.Status)
	}

	override.Status = types.OverrideRejected
	override.ApprovedBy = rejectedBy
	if err := m.repo.Save(override); err != nil {
		return nil, err
	}
	return override, nil
}

// EffectivePremium returns the premium a calculation should bill at: the
// most recently approved unexpired override, or the computed premium when
// none applies.
func (m *OverrideManager) EffectivePremium(id types.CalculationID, computed float64) (float64, error) {
	overrides, err := m.repo.ByCalculation(id)
	if err != nil {
		return 0, err
	}

	now := m.now()
	effective := computed
	var latest time.Time
	for _, o := range overrides {
		if o.Status != types.OverrideApproved || now.After(o.ExpiresAt) {
			continue
		}
		if o.CreatedAt.After(latest) || latest.IsZero() {
			effective = o.ApprovedPremium
			latest = o.CreatedAt
		}
	}
	return effective, nil
}
