package upgrade

import (
	"context"

	"github.com/google/uuid"

	"vendhub/internal/quota"
	"vendhub/internal/types"
)

// Admin capacity overrides. Each override appends an immediately-approved
// ledger entry carrying the acting admin and the mandatory reason, and
// stamps the vendor aggregate so the last modification is visible without
// reading the ledger. Append and stamp share one transaction; the stamp is
// conditional on the ledger version read at the start, which serializes
// racing admin actions and rolls the append back when the race is lost.

// Grant raises a vendor's capacity by amount. Unlike vendor purchases a
// grant is not bound to block sizes; abuse remediation and goodwill
// credits come in odd sizes.
func (s *Service) Grant(ctx context.Context, vendorID string, amount int, reason string, actorID string) (*types.UpgradeEntry, error) {
	if err := types.ValidateAdjustmentAmount(amount); err != nil {
		return nil, err
	}
	return s.override(ctx, vendorID, types.UpgradeKindAdminGrant, amount, reason, actorID)
}

// Reduce lowers a vendor's capacity by amount. The reduction fails with
// capacity_below_usage when the resulting limit would land under the
// vendor's current customer count; customers are never evicted to make a
// reduction fit.
func (s *Service) Reduce(ctx context.Context, vendorID string, amount int, reason string, actorID string) (*types.UpgradeEntry, error) {
	if err := types.ValidateAdjustmentAmount(amount); err != nil {
		return nil, err
	}
	return s.override(ctx, vendorID, types.UpgradeKindAdminReduce, -amount, reason, actorID)
}

// SetAbsolute pins a vendor's capacity to target, appending whatever delta
// closes the gap from the current effective capacity. Setting to the
// current value is a no-op that appends nothing.
func (s *Service) SetAbsolute(ctx context.Context, vendorID string, target int, reason string, actorID string) (*types.UpgradeEntry, error) {
	if target < 0 {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationAmount,
			"target capacity cannot be negative",
			nil,
			map[string]any{"target": target},
		)
	}
	return s.overrideToTarget(ctx, vendorID, target, reason, actorID)
}

func (s *Service) override(ctx context.Context, vendorID string, kind types.UpgradeKind, delta int, reason string, actorID string) (*types.UpgradeEntry, error) {
	if err := types.ValidateReason(reason); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	if delta < 0 {
		if err := s.checkReductionFloor(ctx, vendor, entries, delta); err != nil {
			return nil, err
		}
	}

	return s.appendOverride(ctx, vendor, kind, delta, reason, actorID)
}

func (s *Service) overrideToTarget(ctx context.Context, vendorID string, target int, reason string, actorID string) (*types.UpgradeEntry, error) {
	if err := types.ValidateReason(reason); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	delta := target - quota.EffectiveCapacity(vendor, entries)
	if delta == 0 {
		return nil, nil
	}
	if delta < 0 {
		if err := s.checkReductionFloor(ctx, vendor, entries, delta); err != nil {
			return nil, err
		}
	}

	return s.appendOverride(ctx, vendor, types.UpgradeKindAdminSet, delta, reason, actorID)
}

// checkReductionFloor refuses reductions that would leave effective
// capacity under live usage.
func (s *Service) checkReductionFloor(ctx context.Context, vendor *types.Vendor, entries []*types.UpgradeEntry, delta int) error {
	count, err := s.customers.CountCustomers(ctx, vendor.ID)
	if err != nil {
		return err
	}
	resulting := quota.EffectiveCapacity(vendor, entries) + delta
	if resulting < quota.ReductionFloor(count) {
		return types.NewCapacityBelowUsage(vendor.ID, count, resulting)
	}
	return nil
}

// appendOverride writes the immediately-approved entry and stamps the
// vendor in one transaction. The vendor stamp is conditional on the ledger
// version read at floor-check time, so losing a version race rolls the
// append back too: a conflict_concurrent_modification result means nothing
// was written and the caller's retry starts from a clean ledger.
func (s *Service) appendOverride(ctx context.Context, vendor *types.Vendor, kind types.UpgradeKind, delta int, reason string, actorID string) (*types.UpgradeEntry, error) {
	now := s.clock.Now()
	entry := &types.UpgradeEntry{
		ID:          "upg_" + uuid.New().String(),
		VendorID:    vendor.ID,
		Kind:        kind,
		Status:      types.UpgradeStatusApproved,
		Delta:       delta,
		Reason:      reason,
		RequestedAt: now,
		DecidedAt:   &now,
		DecidedBy:   actorID,
	}

	mod := types.Modification{ActorID: actorID, At: now, Reason: reason}
	err := s.tx.RunInTx(ctx, func(ctx context.Context, vendors types.VendorStore, ledger types.LedgerStore) error {
		if err := ledger.Append(ctx, entry); err != nil {
			return err
		}
		return vendors.TouchModification(ctx, vendor.ID, mod, vendor.LedgerVersion)
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, vendor.ID, types.ActivityCapacityAdjusted, actorID, map[string]any{
		"entry_id": entry.ID,
		"kind":     string(kind),
		"delta":    delta,
		"reason":   reason,
	})
	s.publish(ctx, "capacity.adjusted", entry, actorID, reason)
	return entry, nil
}

// SetAdditionEnabled freezes or unfreezes customer additions for a vendor
// without touching numeric capacity. A freeze always carries a reason.
func (s *Service) SetAdditionEnabled(ctx context.Context, vendorID string, enabled bool, reason string, actorID string) error {
	if !enabled {
		if err := types.ValidateReason(reason); err != nil {
			return err
		}
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return err
	}
	if vendor.CustomersAddEnabled == enabled {
		return nil
	}

	mod := types.Modification{ActorID: actorID, At: s.clock.Now(), Reason: reason}
	if err := s.vendors.SetAddEnabled(ctx, vendorID, enabled, mod, vendor.LedgerVersion); err != nil {
		return err
	}

	s.recordActivity(ctx, vendorID, types.ActivityAdditionToggled, actorID, map[string]any{
		"enabled": enabled,
		"reason":  reason,
	})
	if s.events != nil {
		s.events.Publish(ctx, types.UpgradeEvent{
			EventID:   "evt_" + uuid.New().String(),
			EventType: "vendor.addition_toggled",
			VendorID:  vendorID,
			ActorID:   actorID,
			Reason:    reason,
			Timestamp: s.clock.Now(),
		})
	}
	return nil
}
