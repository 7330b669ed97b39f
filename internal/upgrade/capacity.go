package upgrade

import (
	"context"

	"github.com/google/uuid"

	"vendhub/internal/quota"
	"vendhub/internal/types"
)

// Snapshot assembles the capacity dashboard view: effective capacity from
// the live ledger fold, the customer count, and the units still in flight.
func (s *Service) Snapshot(ctx context.Context, vendorID string) (*types.CapacitySnapshot, error) {
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	count, err := s.customers.CountCustomers(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	return &types.CapacitySnapshot{
		VendorID:            vendor.ID,
		BaseCapacity:        vendor.BaseCapacity,
		EffectiveCapacity:   quota.EffectiveCapacity(vendor, entries),
		CustomerCount:       count,
		PendingUpgradeUnits: quota.PendingUnits(entries),
		CustomersAddEnabled: vendor.CustomersAddEnabled,
	}, nil
}

// CheckAddition is the read-only admission probe: would one more customer
// fit right now. The answer can go stale immediately; EnrollCustomer is
// the only path that admits atomically.
func (s *Service) CheckAddition(ctx context.Context, vendorID string) (types.QuotaDecision, error) {
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return types.QuotaDecision{}, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return types.QuotaDecision{}, err
	}
	count, err := s.customers.CountCustomers(ctx, vendorID)
	if err != nil {
		return types.QuotaDecision{}, err
	}
	return quota.CanAdd(vendor, entries, count), nil
}

// EnrollCustomer admits one customer under the vendor's quota. The freeze
// check happens up front; the numeric limit is enforced by the guarded
// insert itself, so two concurrent enrollments at the last free slot
// resolve to exactly one admission. A denied insert is re-read so the
// denial carries accurate usage figures.
func (s *Service) EnrollCustomer(ctx context.Context, vendorID string, meterNumber string, disco types.Disco, actorID string) (*types.Customer, types.QuotaDecision, error) {
	if err := types.ValidateMeterNumber(meterNumber); err != nil {
		return nil, types.QuotaDecision{}, err
	}
	if !types.ValidDisco(disco) {
		return nil, types.QuotaDecision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDisco,
			"unknown distribution company",
			nil,
			map[string]any{"disco": string(disco)},
		)
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, types.QuotaDecision{}, err
	}
	entries, err := s.ledger.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, types.QuotaDecision{}, err
	}

	limit := quota.EffectiveCapacity(vendor, entries)
	if !vendor.CustomersAddEnabled {
		count, err := s.customers.CountCustomers(ctx, vendorID)
		if err != nil {
			return nil, types.QuotaDecision{}, err
		}
		return nil, types.QuotaDecision{
			Allowed: false,
			Reason:  types.DenyReasonRestricted,
			Current: count,
			Limit:   limit,
		}, nil
	}

	customer := &types.Customer{
		ID:          "cus_" + uuid.New().String(),
		VendorID:    vendorID,
		MeterNumber: meterNumber,
		Disco:       disco,
	}
	admitted, err := s.customers.InsertWithinCapacity(ctx, customer, limit)
	if err != nil {
		return nil, types.QuotaDecision{}, err
	}
	if !admitted {
		count, err := s.customers.CountCustomers(ctx, vendorID)
		if err != nil {
			return nil, types.QuotaDecision{}, err
		}
		return nil, types.QuotaDecision{
			Allowed: false,
			Reason:  types.DenyReasonLimitReached,
			Current: count,
			Limit:   limit,
		}, nil
	}

	s.recordActivity(ctx, vendorID, types.ActivityCustomerAdded, actorID, map[string]any{
		"customer_id":  customer.ID,
		"meter_number": meterNumber,
		"disco":        string(disco),
	})

	count, err := s.customers.CountCustomers(ctx, vendorID)
	if err != nil {
		// The enrollment succeeded; a failed follow-up count only
		// degrades the returned figures.
		s.logger.Warn("failed to count customers after enrollment", "vendor_id", vendorID, "error", err)
		count = 0
	}
	return customer, types.QuotaDecision{Allowed: true, Current: count, Limit: limit}, nil
}
