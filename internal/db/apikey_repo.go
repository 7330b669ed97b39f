package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vendhub/internal/types"
)

// APIKeyRepository provides data access for the api_keys table.
// API keys use bcrypt hashing; plaintext secrets are never stored.
type APIKeyRepository struct {
	db DBTX
}

// NewAPIKeyRepository creates a new APIKeyRepository backed by the given
// database connection (pool or transaction).
func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// apiKeyColumns defines the standard set of columns selected for API key
// queries. secret_hash is included for credential verification but MUST NOT
// be exposed in API responses.
const apiKeyColumns = `id, secret_hash, role, vendor_id, label, last_used_at,
	revoked_at, created_at`

// Create inserts a new API key record. SecretHash MUST be the bcrypt hash of
// the plaintext secret; the plaintext MUST NOT be passed to this method.
func (r *APIKeyRepository) Create(ctx context.Context, key *types.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys (id, secret_hash, role, vendor_id, label, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		key.ID,
		key.SecretHash,
		key.Role,
		nilIfEmpty(key.VendorID),
		key.Label,
		nilIfZeroTime(key.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create API key", err)
	}
	return nil
}

// GetByID retrieves an API key by its ID. Returns ErrCodeAuthKeyInvalid when
// no such key exists so the auth layer does not distinguish unknown IDs from
// bad secrets.
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*types.APIKey, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM api_keys WHERE id = $1`, apiKeyColumns),
		id,
	)

	var (
		key      types.APIKey
		vendorID *string
	)
	err := row.Scan(
		&key.ID,
		&key.SecretHash,
		&key.Role,
		&vendorID,
		&key.Label,
		&key.LastUsedAt,
		&key.RevokedAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthKeyInvalid, "API key not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve API key", err)
	}
	if vendorID != nil {
		key.VendorID = *vendorID
	}
	return &key, nil
}

// Revoke performs a soft revocation by setting revoked_at. Revoked keys stay
// on the table for audit purposes.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke API key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeAuthKeyInvalid, "API key not found or already revoked", nil)
	}
	return nil
}

// TouchLastUsed updates the last_used_at timestamp for an API key.
// This is a fire-and-forget optimization; callers log and ignore failures.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update API key last_used_at", err)
	}
	return nil
}
