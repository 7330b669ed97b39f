// Package db provides PostgreSQL-backed repository implementations for the
// VendHub platform. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
//
// Concurrency contract: the vendor aggregate carries a ledger_version
// column; every capacity-affecting write is conditional on the version the
// caller read and fails with conflict_concurrent_modification when it has
// moved. Upgrade entry transitions are single-statement compare-and-swaps
// on (id, status). No repository method ever leaves an aggregate partially
// written.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// nilIfEmpty returns nil for empty strings so optional text columns store
// NULL instead of "".
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime returns nil for zero times so the database default applies.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
