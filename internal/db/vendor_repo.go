package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"vendhub/internal/types"
)

// VendorRepository provides data access for the vendors table. Writes that
// touch capacity state take the ledger version the caller read; a stale
// version fails the write so the caller can retry from a fresh read.
type VendorRepository struct {
	db DBTX
}

// NewVendorRepository creates a new VendorRepository backed by the given
// database connection (pool or transaction).
func NewVendorRepository(db DBTX) *VendorRepository {
	return &VendorRepository{db: db}
}

// vendorColumns defines the standard set of columns selected for vendor
// queries. Used consistently across all query methods to avoid column drift.
const vendorColumns = `v.id, v.email, v.business_name, v.status,
	v.base_capacity, v.customers_add_enabled, v.ledger_version,
	v.last_modified_by, v.last_modified_at, v.last_modified_reason,
	v.created_at, v.updated_at, v.deleted_at`

// scanVendor scans a single vendor row into a types.Vendor struct.
// The columns must match the order defined in vendorColumns.
func scanVendor(row pgx.Row) (*types.Vendor, error) {
	var v types.Vendor
	var modBy, modReason *string
	var modAt *time.Time

	err := row.Scan(
		&v.ID,
		&v.Email,
		&v.BusinessName,
		&v.Status,
		&v.BaseCapacity,
		&v.CustomersAddEnabled,
		&v.LedgerVersion,
		&modBy,
		&modAt,
		&modReason,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if modBy != nil && modAt != nil {
		mod := types.Modification{ActorID: *modBy, At: *modAt}
		if modReason != nil {
			mod.Reason = *modReason
		}
		v.LastModification = &mod
	}
	return &v, nil
}

// Create inserts a new vendor record. The caller must set the ID (prefixed
// UUID, e.g. "vnd_...") and required fields before calling. New vendors
// start at the configured base capacity with additions enabled and
// ledger_version 1.
func (r *VendorRepository) Create(ctx context.Context, vendor *types.Vendor) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO vendors (id, email, business_name, status,
		 base_capacity, customers_add_enabled, ledger_version,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, COALESCE($7, NOW()), COALESCE($8, NOW()))`,
		vendor.ID,
		vendor.Email,
		vendor.BusinessName,
		vendor.Status,
		vendor.BaseCapacity,
		vendor.CustomersAddEnabled,
		nilIfZeroTime(vendor.CreatedAt),
		nilIfZeroTime(vendor.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create vendor", err)
	}
	return nil
}

// GetByID retrieves a vendor by its ID. Excludes soft-deleted vendors.
// Returns ErrCodeNotFoundVendor if no active vendor is found.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*types.Vendor, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+vendorColumns+`
		 FROM vendors v
		 WHERE v.id = $1 AND v.deleted_at IS NULL`,
		id,
	)

	vendor, err := scanVendor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundVendor, "vendor not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve vendor", err)
	}
	return vendor, nil
}

// SetAddEnabled flips the admin-imposed customer-addition freeze. The write
// is conditional on expectedVersion and bumps ledger_version, so a racing
// admin action surfaces as conflict_concurrent_modification instead of a
// silent overwrite.
func (r *VendorRepository) SetAddEnabled(ctx context.Context, id string, enabled bool, mod types.Modification, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors
		 SET customers_add_enabled = $1,
		     last_modified_by = $2,
		     last_modified_at = $3,
		     last_modified_reason = $4,
		     ledger_version = ledger_version + 1,
		     updated_at = NOW()
		 WHERE id = $5 AND ledger_version = $6 AND deleted_at IS NULL`,
		enabled,
		mod.ActorID,
		mod.At,
		nilIfEmpty(mod.Reason),
		id,
		expectedVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to toggle customer addition", err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

// CompactBaseCapacity folds delta into base_capacity as part of ledger
// compaction. The caller marks the folded entries applied in the same
// transaction; the version check keeps the two writes consistent against
// concurrent capacity mutations.
func (r *VendorRepository) CompactBaseCapacity(ctx context.Context, id string, delta int, mod types.Modification, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors
		 SET base_capacity = base_capacity + $1,
		     last_modified_by = $2,
		     last_modified_at = $3,
		     last_modified_reason = $4,
		     ledger_version = ledger_version + 1,
		     updated_at = NOW()
		 WHERE id = $5 AND ledger_version = $6 AND deleted_at IS NULL
		   AND base_capacity + $1 >= 0`,
		delta,
		mod.ActorID,
		mod.At,
		nilIfEmpty(mod.Reason),
		id,
		expectedVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to compact base capacity", err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

// TouchModification stamps last_modification and bumps ledger_version
// without changing capacity fields. Admin overrides call this alongside the
// ledger append so the aggregate records who acted last.
func (r *VendorRepository) TouchModification(ctx context.Context, id string, mod types.Modification, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors
		 SET last_modified_by = $1,
		     last_modified_at = $2,
		     last_modified_reason = $3,
		     ledger_version = ledger_version + 1,
		     updated_at = NOW()
		 WHERE id = $4 AND ledger_version = $5 AND deleted_at IS NULL`,
		mod.ActorID,
		mod.At,
		nilIfEmpty(mod.Reason),
		id,
		expectedVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update vendor modification", err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

// staleOrMissing distinguishes a failed conditional write: the vendor is
// either gone (not found) or its ledger_version moved (concurrent
// modification, caller retries from a fresh read).
func (r *VendorRepository) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM vendors WHERE id = $1 AND deleted_at IS NULL)`,
		id,
	).Scan(&exists)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to check vendor existence", err)
	}
	if !exists {
		return types.NewAppError(types.ErrCodeNotFoundVendor, "vendor not found", nil)
	}
	return types.NewAppError(types.ErrCodeConflictConcurrent, "vendor was modified concurrently; retry from a fresh read", nil)
}
