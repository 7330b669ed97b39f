package upgrade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendhub/internal/types"
)

func TestGrant_ImmediatelyEffective(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, err := h.svc.Grant(ctx, "vnd_1", 750, "goodwill credit", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeKindAdminGrant, entry.Kind)
	assert.Equal(t, types.UpgradeStatusApproved, entry.Status)
	assert.Equal(t, 750, entry.Delta)
	assert.Equal(t, int64(0), entry.AmountDue)
	assert.Equal(t, "adm_1", entry.DecidedBy)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 1750, snap.EffectiveCapacity)

	// The aggregate records the override.
	vendor, err := h.vendors.GetByID(ctx, "vnd_1")
	require.NoError(t, err)
	require.NotNil(t, vendor.LastModification)
	assert.Equal(t, "adm_1", vendor.LastModification.ActorID)
	assert.Equal(t, "goodwill credit", vendor.LastModification.Reason)
}

func TestGrant_RequiresReasonAndPositiveAmount(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	_, err := h.svc.Grant(ctx, "vnd_1", 500, "", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationMissingReason)

	_, err = h.svc.Grant(ctx, "vnd_1", 0, "reason", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationAmount)

	_, err = h.svc.Grant(ctx, "vnd_1", -10, "reason", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationAmount)
}

func TestReduce_RespectsUsageFloor(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	h.customers.seed("vnd_1", 800)
	ctx := context.Background()

	// Down to 900 is fine with 800 customers.
	entry, err := h.svc.Reduce(ctx, "vnd_1", 100, "abuse report", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeKindAdminReduce, entry.Kind)
	assert.Equal(t, -100, entry.Delta)

	// Down to 700 would strand 100 customers.
	_, err = h.svc.Reduce(ctx, "vnd_1", 200, "abuse report", "adm_1")
	requireAppErr(t, err, types.ErrCodeCapacityBelowUsage)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 900, snap.EffectiveCapacity)
}

func TestReduce_ExactlyToUsageAllowed(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	h.customers.seed("vnd_1", 800)
	ctx := context.Background()

	_, err := h.svc.Reduce(ctx, "vnd_1", 200, "plan downgrade", "adm_1")
	require.NoError(t, err)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 800, snap.EffectiveCapacity)

	// The vendor is now full.
	decision, err := h.svc.CheckAddition(ctx, "vnd_1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.DenyReasonLimitReached, decision.Reason)
}

func TestSetAbsolute_AppendsGapDelta(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, err := h.svc.SetAbsolute(ctx, "vnd_1", 2500, "contract renegotiation", "adm_1")
	require.NoError(t, err)
	assert.Equal(t, types.UpgradeKindAdminSet, entry.Kind)
	assert.Equal(t, 1500, entry.Delta)

	snap, err := h.svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 2500, snap.EffectiveCapacity)
}

func TestSetAbsolute_NoopAtCurrentValue(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	entry, err := h.svc.SetAbsolute(ctx, "vnd_1", 1000, "no change", "adm_1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, err := h.ledger.ListForVendor(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetAbsolute_BelowUsageRefused(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	h.customers.seed("vnd_1", 900)
	ctx := context.Background()

	_, err := h.svc.SetAbsolute(ctx, "vnd_1", 500, "downgrade", "adm_1")
	requireAppErr(t, err, types.ErrCodeCapacityBelowUsage)

	_, err = h.svc.SetAbsolute(ctx, "vnd_1", -1, "bad", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationAmount)
}

func TestSetAdditionEnabled_FreezeAndThaw(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	// Freeze requires a reason.
	err := h.svc.SetAdditionEnabled(ctx, "vnd_1", false, "", "adm_1")
	requireAppErr(t, err, types.ErrCodeValidationMissingReason)

	require.NoError(t, h.svc.SetAdditionEnabled(ctx, "vnd_1", false, "payment dispute", "adm_1"))

	decision, err := h.svc.CheckAddition(ctx, "vnd_1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.DenyReasonRestricted, decision.Reason)

	// Unfreeze needs no reason; repeated unfreeze is a no-op.
	require.NoError(t, h.svc.SetAdditionEnabled(ctx, "vnd_1", true, "", "adm_1"))
	require.NoError(t, h.svc.SetAdditionEnabled(ctx, "vnd_1", true, "", "adm_1"))

	decision, err = h.svc.CheckAddition(ctx, "vnd_1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

// contendedVendors bumps the vendor version right after the first read,
// simulating another admin landing between an override's read and its write.
type contendedVendors struct {
	*fakeVendors
	contended bool
}

func (c *contendedVendors) GetByID(ctx context.Context, id string) (*types.Vendor, error) {
	v, err := c.fakeVendors.GetByID(ctx, id)
	if err != nil || c.contended {
		return v, err
	}
	c.contended = true
	other := types.Modification{ActorID: "adm_2", Reason: "parallel action"}
	if err := c.fakeVendors.TouchModification(ctx, id, other, v.LedgerVersion); err != nil {
		return nil, err
	}
	return v, nil
}

func TestGrant_LostVersionRaceWritesNothing(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	vendors := &contendedVendors{fakeVendors: h.vendors}
	svc := NewService(ServiceConfig{
		Vendors:    vendors,
		Ledger:     h.ledger,
		Customers:  h.customers,
		Activities: h.activities,
		Events:     h.events,
		TxManager:  &fakeTx{vendors: h.vendors, ledger: h.ledger},
		Clock:      fixedClock{t: h.now},
	})
	ctx := context.Background()

	_, err := svc.Grant(ctx, "vnd_1", 500, "goodwill credit", "adm_1")
	requireAppErr(t, err, types.ErrCodeConflictConcurrent)

	// The losing grant left no ledger entry and capacity is untouched.
	entries, err := h.ledger.ListForVendor(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	snap, err := svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 1000, snap.EffectiveCapacity)

	// The contractual retry applies the adjustment exactly once.
	_, err = svc.Grant(ctx, "vnd_1", 500, "goodwill credit", "adm_1")
	require.NoError(t, err)

	snap, err = svc.Snapshot(ctx, "vnd_1")
	require.NoError(t, err)
	assert.Equal(t, 1500, snap.EffectiveCapacity)
}

func TestOverride_StaleVendorVersionConflicts(t *testing.T) {
	h := newHarness(activeVendor("vnd_1", 1000))
	ctx := context.Background()

	// Another admin bumps the version between our read and write.
	vendor, err := h.vendors.GetByID(ctx, "vnd_1")
	require.NoError(t, err)
	stale := vendor.LedgerVersion
	require.NoError(t, h.vendors.TouchModification(ctx, "vnd_1", types.Modification{ActorID: "adm_2", At: h.now}, stale))

	err = h.vendors.TouchModification(ctx, "vnd_1", types.Modification{ActorID: "adm_1", At: h.now}, stale)
	requireAppErr(t, err, types.ErrCodeConflictConcurrent)
}
