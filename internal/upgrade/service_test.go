package upgrade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendhub/internal/types"
)

func adminActor() types.Actor {
	return types.Actor{ID: "adm_1", Role: types.RoleAdmin}
}

func vendorActor(vendorID string) types.Actor {
	return types.Actor{ID: vendorID, Role: types.RoleVendor, VendorID: vendorID}
}

func requireAppErr(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, code, appErr.Code)
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))

	entry, err := h.svc.Submit(context.Background(), "vnd_1", 1000, "vnd_1")
	require.NoError(t, err)

	assert.Equal(t, types.UpgradeKindRequested, entry.Kind)
	assert.Equal(t, types.UpgradeStatusPending, entry.Status)
	assert.Equal(t, 1000, entry.Delta)
	assert.Equal(t, int64(100_000), entry.AmountDue)
	assert.Equal(t, h.now, entry.RequestedAt)

	assert.Equal(t, []string{"upgrade.requested"}, h.events.eventTypes())
}

func TestSubmit_UnitValidation(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	tests := []struct {
		units int
		code  types.ErrorCode
	}{
		{units: 0, code: types.ErrCodeValidationUnitSize},
		{units: -500, code: types.ErrCodeValidationUnitSize},
		{units: 499, code: types.ErrCodeValidationUnitSize},
		{units: 750, code: types.ErrCodeValidationUnitSize},
		{units: 5500, code: types.ErrCodeValidationUnitRange},
	}
	for _, tt := range tests {
		_, err := h.svc.Submit(ctx, "vnd_1", tt.units, "vnd_1")
		requireAppErr(t, err, tt.code)
	}

	// Boundary sizes are valid.
	_, err := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, "vnd_1", 5000, "vnd_1")
	require.NoError(t, err)
}

func TestSubmit_InactiveVendor(t *testing.T) {
	vendor := activeVendor("vnd_1", 1000)
	vendor.Status = types.VendorStatusPending
	h := newHarness(vendor)

	_, err := h.svc.Submit(context.Background(), "vnd_1", 500, "vnd_1")
	requireAppErr(t, err, types.ErrCodeVendorNotApproved)
}

func TestSubmit_PendingDoesNotRaiseCapacity(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, "vnd_1", 2000, "vnd_1")
	require.NoError(t, err)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 1000, snap.EffectiveCapacity)
	assert.Equal(t, 2000, snap.PendingUpgradeUnits)
}

func TestAttachProof_MovesToPendingVerification(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, err := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	require.NoError(t, err)

	updated, err := h.svc.AttachProof(ctx, entry.ID, "transfer-ref-991", vendorActor("vnd_1"))
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusPendingVerification, updated.Status)
	assert.Equal(t, "transfer-ref-991", updated.ProofOfPayment)
}

func TestAttachProof_ReplaceKeepsStatus(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.AttachProof(ctx, entry.ID, "wrong-ref", vendorActor("vnd_1"))
	require.NoError(t, err)

	updated, err := h.svc.AttachProof(ctx, entry.ID, "corrected-ref", vendorActor("vnd_1"))
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusPendingVerification, updated.Status)
	assert.Equal(t, "corrected-ref", updated.ProofOfPayment)
}

func TestAttachProof_RequiresReference(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.AttachProof(ctx, entry.ID, "   ", vendorActor("vnd_1"))
	requireAppErr(t, err, types.ErrCodeValidationMissingField)
}

func TestAttachProof_OtherVendorForbidden(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000), activeVendor("vnd_2", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.AttachProof(ctx, entry.ID, "ref", vendorActor("vnd_2"))
	requireAppErr(t, err, types.ErrCodePermissionVendorMismatch)
}

func TestDecide_ApproveRaisesCapacity(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 1000, "vnd_1")
	_, err := h.svc.AttachProof(ctx, entry.ID, "ref-1", vendorActor("vnd_1"))
	require.NoError(t, err)

	decided, err := h.svc.Decide(ctx, entry.ID, types.DecisionApprove, "", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusApproved, decided.Status)
	assert.Equal(t, "adm_1", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 2000, snap.EffectiveCapacity)
}

func TestDecide_ApproveStraightFromPending(t *testing.T) {
	// Manual bank confirmation can outrun the proof upload; approval does
	// not require the proof step.
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	decided, err := h.svc.Decide(ctx, entry.ID, types.DecisionApprove, "", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusApproved, decided.Status)
}

func TestDecide_RejectRequiresReason(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.Decide(ctx, entry.ID, types.DecisionReject, "  ", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationMissingReason)

	rejected, err := h.svc.Decide(ctx, entry.ID, types.DecisionReject, "no matching transfer", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusRejected, rejected.Status)
	assert.Equal(t, "no matching transfer", rejected.Reason)
}

func TestDecide_RejectedEntryIsTerminal(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.Decide(ctx, entry.ID, types.DecisionReject, "fraud", "adm_1")
	require.NoError(t, err)

	_, err = h.svc.Decide(ctx, entry.ID, types.DecisionApprove, "", "adm_1")
	requireAppErr(t, err, types.ErrCodeInvalidStateTransition)

	_, err = h.svc.AttachProof(ctx, entry.ID, "ref", vendorActor("vnd_1"))
	requireAppErr(t, err, types.ErrCodeInvalidStateTransition)
}

func TestDecide_ReversalRemovesCapacityKeepsCustomers(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.Decide(ctx, entry.ID, types.DecisionApprove, "", "adm_1")
	require.NoError(t, err)

	// Vendor fills past the old limit while upgraded.
	h.customers.seed("vnd_1", 1200)

	reversed, err := h.svc.Decide(ctx, entry.ID, types.DecisionReject, "chargeback received", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusRejected, reversed.Status)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 1000, snap.EffectiveCapacity)
	// Enrolled customers stay; the vendor just sits over limit.
	assert.Equal(t, 1200, snap.CustomerCount)

	decision, err := h.svc.CheckAddition(ctx, "vnd_1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.DenyReasonLimitReached, decision.Reason)
}

func TestDecide_CompletedAliasApproves(t *testing.T) {
	// The mobile app still sends the legacy "completed" label; the ledger
	// stores approved either way.
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	require.NoError(t, h.ledger.MarkApplied(ctx, "vnd_1", nil, h.now)) // no-op sanity

	seeded, err := h.ledger.Transition(ctx, entry.ID, types.UpgradeStatusPending, func(e *types.UpgradeEntry) {
		e.Status = types.UpgradeStatus("completed")
	})
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusApproved, seeded.Status.Canonical())

	// A reversal works from the legacy label too.
	reversed, err := h.svc.Decide(ctx, entry.ID, types.DecisionReject, "duplicate payment", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusRejected, reversed.Status)
}

func TestCancel_OwnPendingEntry(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	cancelled, err := h.svc.Cancel(ctx, entry.ID, vendorActor("vnd_1"))
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeStatusRejected, cancelled.Status)
	assert.Equal(t, "vendor_cancelled", cancelled.Reason)
}

func TestCancel_ApprovedEntryRefused(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.Decide(ctx, entry.ID, types.DecisionApprove, "", "adm_1")
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, entry.ID, vendorActor("vnd_1"))
	requireAppErr(t, err, types.ErrCodeInvalidStateTransition)
}

func TestListPending_FIFOQueue(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000), activeVendor("vnd_2", 1000))
	ctx := context.Background()

	first, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	second, _ := h.svc.Submit(ctx, "vnd_2", 1000, "vnd_2")
	third, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")
	_, err := h.svc.Decide(ctx, second.ID, types.DecisionApprove, "", "adm_1")
	require.NoError(t, err)

	pending, _, err := h.svc.ListPending(ctx, types.PendingUpgradeFilter{})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)
}

func TestGetEntry_VendorScoped(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000), activeVendor("vnd_2", 1000))
	ctx := context.Background()

	entry, _ := h.svc.Submit(ctx, "vnd_1", 500, "vnd_1")

	_, err := h.svc.GetEntry(ctx, entry.ID, vendorActor("vnd_2"))
	requireAppErr(t, err, types.ErrCodePermissionVendorMismatch)

	got, err := h.svc.GetEntry(ctx, entry.ID, adminActor())
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
}
