// Package pricing provides the per-DISCO token pricing used by customer
// token vends. Prices are configured per distribution company; a DISCO
// with no active pricing cannot be vended to.
package pricing

import (
	"context"

	"vendhub/internal/types"
)

// Registry resolves the current price per token unit for a DISCO.
type Registry interface {
	// PriceFor returns the active pricing for the given DISCO. Returns
	// not_found_disco_pricing when the DISCO has no active pricing.
	PriceFor(ctx context.Context, disco types.Disco) (*types.DiscoPricing, error)

	// Active lists every DISCO currently open for vending.
	Active(ctx context.Context) ([]*types.DiscoPricing, error)
}

// defaultRates are the launch prices in naira per token unit, used to seed
// a fresh pricing table. Operations overrides these through the admin API.
var defaultRates = map[types.Disco]int64{
	types.DiscoABA:   98,
	types.DiscoIKEDC: 102,
	types.DiscoIBEDC: 100,
	types.DiscoAEDC:  105,
	types.DiscoBEDC:  97,
	types.DiscoEEDC:  99,
	types.DiscoKEDCO: 96,
}

// DefaultRates returns a copy of the launch pricing sheet, keyed by DISCO.
func DefaultRates() map[types.Disco]int64 {
	m := make(map[types.Disco]int64, len(defaultRates))
	for k, v := range defaultRates {
		m[k] = v
	}
	return m
}

// PricingStore is the persistence contract the repository-backed registry
// needs.
type PricingStore interface {
	GetByDisco(ctx context.Context, disco types.Disco) (*types.DiscoPricing, error)
	ListActive(ctx context.Context) ([]*types.DiscoPricing, error)
}

// storeRegistry is the production Registry, reading the disco_pricing
// table on every call. Pricing changes are rare and reads are cheap; no
// cache sits in front.
type storeRegistry struct {
	store PricingStore
}

// NewRegistry returns a Registry backed by the pricing store.
func NewRegistry(store PricingStore) Registry {
	return &storeRegistry{store: store}
}

func (r *storeRegistry) PriceFor(ctx context.Context, disco types.Disco) (*types.DiscoPricing, error) {
	if !types.ValidDisco(disco) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDisco,
			"unknown distribution company",
			nil,
			map[string]any{"disco": string(disco)},
		)
	}
	pricing, err := r.store.GetByDisco(ctx, disco)
	if err != nil {
		return nil, err
	}
	if !pricing.Active {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundPricing,
			"vending is suspended for this disco",
			nil,
			map[string]any{"disco": string(disco)},
		)
	}
	return pricing, nil
}

func (r *storeRegistry) Active(ctx context.Context) ([]*types.DiscoPricing, error) {
	return r.store.ListActive(ctx)
}
