package types

import "fmt"

// QuotaPolicy defines the commercial rules for capacity purchases.
// Values are configurable at startup; the defaults below mirror the
// production pricing sheet.
type QuotaPolicy struct {
	// BaseCapacity is the customer quota every new vendor starts with.
	BaseCapacity int `json:"base_capacity"`

	// UnitSize is the fixed increment capacity is sold in.
	UnitSize int `json:"unit_size"`

	// MinUnits and MaxUnits bound a single vendor-requested upgrade.
	MinUnits int `json:"min_units"`
	MaxUnits int `json:"max_units"`

	// UnitPrice is the naira price of one UnitSize block.
	UnitPrice int64 `json:"unit_price"`
}

// DefaultQuotaPolicy returns the production pricing: vendors start at 1000
// customers, upgrades are sold in blocks of 500 (one to ten blocks per
// request) at NGN 50,000 per block.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		BaseCapacity: 1000,
		UnitSize:     500,
		MinUnits:     500,
		MaxUnits:     5000,
		UnitPrice:    50_000,
	}
}

// ValidateUnits checks that a requested upgrade size is a positive multiple
// of the unit size within the configured bounds.
func (p QuotaPolicy) ValidateUnits(units int) error {
	if units <= 0 || units%p.UnitSize != 0 {
		return NewAppErrorWithDetails(
			ErrCodeValidationUnitSize,
			fmt.Sprintf("upgrade size must be a positive multiple of %d", p.UnitSize),
			nil,
			map[string]any{"units": units, "unit_size": p.UnitSize},
		)
	}
	if units < p.MinUnits || units > p.MaxUnits {
		return NewAppErrorWithDetails(
			ErrCodeValidationUnitRange,
			fmt.Sprintf("upgrade size must be between %d and %d", p.MinUnits, p.MaxUnits),
			nil,
			map[string]any{"units": units, "min": p.MinUnits, "max": p.MaxUnits},
		)
	}
	return nil
}

// PriceFor returns the purchase price of an upgrade of the given size.
// Callers must validate units first; PriceFor assumes a whole number of
// blocks.
func (p QuotaPolicy) PriceFor(units int) int64 {
	return int64(units/p.UnitSize) * p.UnitPrice
}
