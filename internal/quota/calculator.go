// Package quota implements the capacity arithmetic and admission decisions
// for vendor customer quotas. Everything in this package is pure: callers
// load the vendor aggregate and its ledger, call in, and own whatever
// transactional boundary the result is acted on inside.
package quota

import (
	"vendhub/internal/types"
)

// EffectiveCapacity computes a vendor's customer quota from its base
// capacity plus the fold over its upgrade ledger.
//
// Only approved entries contribute; pending, pending_verification and
// rejected entries are ignored, and applied entries are retired history
// whose delta already lives in the base. The fold is the single source of
// truth for capacity reads -- compaction retires approved entries and grows
// the base by the same amount in one transaction, so this result is
// identical before and after a compaction pass.
//
// A vendor with no entries yields exactly its base capacity. The result is
// clamped at zero: admin reductions can never fold below an empty quota.
func EffectiveCapacity(vendor *types.Vendor, entries []*types.UpgradeEntry) int {
	capacity := vendor.BaseCapacity
	for _, e := range entries {
		if e.Status.Canonical().CountsTowardCapacity() {
			capacity += e.Delta
		}
	}
	if capacity < 0 {
		return 0
	}
	return capacity
}

// PendingUnits sums the deltas of entries still in flight (pending or
// pending_verification). Dashboards show this next to effective capacity;
// it never participates in admission decisions.
func PendingUnits(entries []*types.UpgradeEntry) int {
	units := 0
	for _, e := range entries {
		switch e.Status.Canonical() {
		case types.UpgradeStatusPending, types.UpgradeStatusPendingVerification:
			units += e.Delta
		}
	}
	return units
}
