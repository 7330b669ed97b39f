package upgrade

import (
	"context"
	"time"

	"vendhub/internal/types"
)

// CompactionResult reports what one compaction pass folded.
type CompactionResult struct {
	VendorID        string    `json:"vendor_id"`
	FoldedDelta     int       `json:"folded_delta"`
	EntryIDs        []string  `json:"entry_ids"`
	NewBaseCapacity int       `json:"new_base_capacity"`
	CompactedAt     time.Time `json:"compacted_at"`
}

// Compact folds a vendor's approved entries into its base capacity and
// retires them as applied. The fold and the retirement run in one
// transaction against the ledger version read up front, so effective
// capacity is identical before and after; compaction is purely a storage
// optimization plus an audit checkpoint.
//
// A vendor with nothing to fold gets a zero result and no writes.
func (s *Service) Compact(ctx context.Context, vendorID string, actorID string) (*CompactionResult, error) {
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	var folded []*types.UpgradeEntry
	var ids []string
	delta := 0
	for _, e := range entries {
		if e.Status.Canonical() == types.UpgradeStatusApproved {
			folded = append(folded, e)
			ids = append(ids, e.ID)
			delta += e.Delta
		}
	}

	now := s.clock.Now()
	result := &CompactionResult{
		VendorID:        vendorID,
		FoldedDelta:     delta,
		EntryIDs:        ids,
		NewBaseCapacity: vendor.BaseCapacity + delta,
		CompactedAt:     now,
	}
	if len(ids) == 0 {
		result.NewBaseCapacity = vendor.BaseCapacity
		return result, nil
	}

	mod := types.Modification{ActorID: actorID, At: now, Reason: "ledger compaction"}
	err = s.tx.RunInTx(ctx, func(ctx context.Context, vendors types.VendorStore, ledger types.LedgerStore) error {
		if err := vendors.CompactBaseCapacity(ctx, vendorID, delta, mod, vendor.LedgerVersion); err != nil {
			return err
		}
		return ledger.MarkApplied(ctx, vendorID, ids, now)
	})
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		if err := s.archiver.Checkpoint(vendorID, folded, now); err != nil {
			// The checkpoint is an audit convenience; the entries
			// themselves remain in the ledger as applied rows.
			s.logger.Warn("failed to write compaction checkpoint", "vendor_id", vendorID, "error", err)
		}
	}

	s.logger.Info("compacted upgrade ledger",
		"vendor_id", vendorID,
		"entries", len(ids),
		"folded_delta", delta,
		"new_base_capacity", result.NewBaseCapacity,
	)
	s.recordActivity(ctx, vendorID, types.ActivityCapacityAdjusted, actorID, map[string]any{
		"compacted_entries": len(ids),
		"folded_delta":      delta,
	})
	return result, nil
}
