package quota

import (
	"vendhub/internal/types"
)

// CanAdd decides whether a vendor may enroll one more customer.
//
// The checks run in a fixed order:
//  1. The admin-imposed freeze (CustomersAddEnabled == false) denies with
//     reason "restricted" regardless of numeric capacity.
//  2. currentCount >= effective capacity denies with reason
//     "limit_reached"; both figures are returned so the caller can render
//     "X/Y used".
//  3. Otherwise the add is allowed.
//
// CanAdd is a pure check with no side effects. The customer-creation path
// that acts on an allowed decision must perform its count check and insert
// as one atomically consistent operation (the capacity-guarded insert in
// the db package)
// so two concurrent adds cannot both consume the last slot.
func CanAdd(vendor *types.Vendor, entries []*types.UpgradeEntry, currentCount int) types.QuotaDecision {
	limit := EffectiveCapacity(vendor, entries)

	if !vendor.CustomersAddEnabled {
		return types.QuotaDecision{
			Allowed: false,
			Reason:  types.DenyReasonRestricted,
			Current: currentCount,
			Limit:   limit,
		}
	}

	if currentCount >= limit {
		return types.QuotaDecision{
			Allowed: false,
			Reason:  types.DenyReasonLimitReached,
			Current: currentCount,
			Limit:   limit,
		}
	}

	return types.QuotaDecision{
		Allowed: true,
		Current: currentCount,
		Limit:   limit,
	}
}

// ReductionFloor returns the minimum capacity a vendor can be reduced to:
// its current customer count. Admin reduce/set operations fail when their
// target lands under this floor.
func ReductionFloor(currentCount int) int {
	return currentCount
}
