package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"vendhub/internal/types"
)

// PgxTxManager runs callbacks inside a single database transaction, handing
// them repositories bound to that transaction. Used by compaction, where the
// base-capacity fold and the entry retirement must land together.
type PgxTxManager struct {
	pool *pgxpool.Pool
}

// NewPgxTxManager creates a PgxTxManager backed by the given pool.
func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

// RunInTx begins a transaction, invokes fn with transaction-scoped vendor
// and ledger repositories, and commits. Any error from fn rolls the
// transaction back and is returned unchanged so callers keep their typed
// error codes.
func (m *PgxTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, vendors types.VendorStore, ledger types.LedgerStore) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	// Rollback after a successful commit returns pgx.ErrTxClosed.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewVendorRepository(tx), NewLedgerRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
