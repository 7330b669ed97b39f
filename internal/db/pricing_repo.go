package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vendhub/internal/types"
)

// PricingRepository stores the per-DISCO token pricing table.
type PricingRepository struct {
	db DBTX
}

// NewPricingRepository creates a new PricingRepository backed by the given
// database connection (pool or transaction).
func NewPricingRepository(db DBTX) *PricingRepository {
	return &PricingRepository{db: db}
}

// Upsert creates or replaces the pricing record for a DISCO.
func (r *PricingRepository) Upsert(ctx context.Context, pricing *types.DiscoPricing) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO disco_pricing (disco, price_per_unit, active, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (disco) DO UPDATE
		 SET price_per_unit = EXCLUDED.price_per_unit,
		     active = EXCLUDED.active,
		     updated_at = NOW()`,
		pricing.Disco,
		pricing.PricePerUnit,
		pricing.Active,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert disco pricing", err)
	}
	return nil
}

// GetByDisco retrieves the pricing record for one DISCO.
func (r *PricingRepository) GetByDisco(ctx context.Context, disco types.Disco) (*types.DiscoPricing, error) {
	var p types.DiscoPricing
	err := r.db.QueryRow(ctx,
		`SELECT disco, price_per_unit, active, updated_at
		 FROM disco_pricing WHERE disco = $1`,
		disco,
	).Scan(&p.Disco, &p.PricePerUnit, &p.Active, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPricing, "no pricing configured for disco", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve disco pricing", err)
	}
	return &p, nil
}

// ListActive returns every DISCO that currently has active pricing.
func (r *PricingRepository) ListActive(ctx context.Context) ([]*types.DiscoPricing, error) {
	rows, err := r.db.Query(ctx,
		`SELECT disco, price_per_unit, active, updated_at
		 FROM disco_pricing
		 WHERE active = TRUE
		 ORDER BY disco ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list disco pricing", err)
	}
	defer rows.Close()

	var pricings []*types.DiscoPricing
	for rows.Next() {
		var p types.DiscoPricing
		if err := rows.Scan(&p.Disco, &p.PricePerUnit, &p.Active, &p.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan disco pricing", err)
		}
		pricings = append(pricings, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate disco pricing", err)
	}
	return pricings, nil
}

// SetActive flips a DISCO's pricing availability without touching the rate.
func (r *PricingRepository) SetActive(ctx context.Context, disco types.Disco, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE disco_pricing SET active = $1, updated_at = NOW() WHERE disco = $2`,
		active,
		disco,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update disco pricing", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPricing, "no pricing configured for disco", nil)
	}
	return nil
}
