// internal/premium/override_test.go
package premium

import (
	"errors"
	"testing"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

func newTestOverrideManager(t *testing.T) *OverrideManager {
	t.Helper()
	m, err := NewOverrideManager(NewMemoryOverrideRepository(), nil)
	if err != nil {
		t.Fatalf("NewOverrideManager() error = %v", err)
	}
	return m
}

func TestRequestOverride_RequiresJustification(t *testing.T) {
	m := newTestOverrideManager(t)

	_, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 800,
		RequestedBy:     "underwriter-7",
	})
	if !errors.Is(err, types.ErrMissingJustification) {
		t.Errorf("RequestOverride() error = %v, want ErrMissingJustification", err)
	}
}

func TestRequestOverride_ValidationErrors(t *testing.T) {
	m := newTestOverrideManager(t)

	_, err := m.RequestOverride(OverrideRequest{
		OriginalPremium: 1000,
		ApprovedPremium: 800,
		Justification:   "retention offer",
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("missing calculation ID: error = %v, want ErrValidation", err)
	}

	_, err = m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: -5,
		Justification:   "retention offer",
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("negative premium: error = %v, want ErrValidation", err)
	}
}

func TestOverride_ApprovalWorkflow(t *testing.T) {
	m := newTestOverrideManager(t)

	override, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 800,
		Justification:   "retention offer for long-standing policyholder",
		RequestedBy:     "underwriter-7",
	})
	if err != nil {
		t.Fatalf("RequestOverride() error = %v, want nil", err)
	}
	if override.Status != types.OverridePending {
		t.Errorf("Status = %s, want PENDING", override.Status)
	}
	if override.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt unset, want default validity applied")
	}

	approved, err := m.ApproveOverride(override.OverrideID, "manager-2")
	if err != nil {
		t.Fatalf("ApproveOverride() error = %v, want nil", err)
	}
	if approved.Status != types.OverrideApproved || approved.ApprovedBy != "manager-2" {
		t.Errorf("approved = %+v, want APPROVED by manager-2", approved)
	}

	// Double approval is rejected
	if _, err := m.ApproveOverride(override.OverrideID, "manager-3"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("second ApproveOverride() error = %v, want ErrValidation", err)
	}
}

func TestOverride_RejectWorkflow(t *testing.T) {
	m := newTestOverrideManager(t)

	override, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 100,
		Justification:   "disputed surcharge",
	})
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := m.RejectOverride(override.OverrideID, "manager-2")
	if err != nil {
		t.Fatalf("RejectOverride() error = %v, want nil", err)
	}
	if rejected.Status != types.OverrideRejected {
		t.Errorf("Status = %s, want REJECTED", rejected.Status)
	}

	if _, err := m.ApproveOverride(override.OverrideID, "manager-3"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("ApproveOverride() after rejection error = %v, want ErrValidation", err)
	}
}

func TestApproveOverride_UnknownID(t *testing.T) {
	m := newTestOverrideManager(t)
	_, err := m.ApproveOverride("ghost", "manager-2")
	if !errors.Is(err, types.ErrOverrideNotFound) {
		t.Errorf("ApproveOverride() error = %v, want ErrOverrideNotFound", err)
	}
}

func TestEffectivePremium(t *testing.T) {
	m := newTestOverrideManager(t)

	// No overrides: computed premium stands
	got, err := m.EffectivePremium("calc-1", 1000)
	if err != nil || got != 1000 {
		t.Fatalf("EffectivePremium() = (%v, %v), want (1000, nil)", got, err)
	}

	override, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 850,
		Justification:   "retention offer",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Pending overrides do not apply
	got, err = m.EffectivePremium("calc-1", 1000)
	if err != nil || got != 1000 {
		t.Fatalf("EffectivePremium() with pending = (%v, %v), want (1000, nil)", got, err)
	}

	if _, err := m.ApproveOverride(override.OverrideID, "manager-2"); err != nil {
		t.Fatal(err)
	}
	got, err = m.EffectivePremium("calc-1", 1000)
	if err != nil || got != 850 {
		t.Fatalf("EffectivePremium() with approval = (%v, %v), want (850, nil)", got, err)
	}
}

func TestEffectivePremium_ExpiredOverrideIgnored(t *testing.T) {
	repo := NewMemoryOverrideRepository()
	m, err := NewOverrideManager(repo, nil)
	if err != nil {
		t.Fatal(err)
	}

	override, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 850,
		Justification:   "seasonal promotion",
		ExpiresAt:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ApproveOverride(override.OverrideID, "manager-2"); err != nil {
		t.Fatal(err)
	}

	// Move the manager clock past the expiry
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, err := m.EffectivePremium("calc-1", 1000)
	if err != nil || got != 1000 {
		t.Fatalf("EffectivePremium() past expiry = (%v, %v), want (1000, nil)", got, err)
	}
}

func TestEffectivePremium_LatestApprovedWins(t *testing.T) {
	m := newTestOverrideManager(t)

	clock := time.Now()
	m.now = func() time.Time { return clock }

	first, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 900,
		Justification:   "first adjustment",
	})
	if err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(time.Minute)
	second, err := m.RequestOverride(OverrideRequest{
		CalculationID:   "calc-1",
		OriginalPremium: 1000,
		ApprovedPremium: 825,
		Justification:   "revised adjustment",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ApproveOverride(first.OverrideID, "manager-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ApproveOverride(second.OverrideID, "manager-2"); err != nil {
		t.Fatal(err)
	}

	got, err := m.EffectivePremium("calc-1", 1000)
	if err != nil || got != 825 {
		t.Fatalf("EffectivePremium() = (%v, %v), want (825, nil)", got, err)
	}
}
