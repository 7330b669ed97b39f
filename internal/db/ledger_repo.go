package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"vendhub/internal/types"
)

// LedgerRepository provides data access for the upgrade_entries table.
//
// The table is append-only: entries are created once and only their
// workflow fields (status, proof, decision metadata) ever change, always
// through Transition's compare-and-swap. Rejected entries stay on disk for
// audit; nothing is physically deleted.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository backed by the given
// database connection (pool or transaction).
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const entryColumns = `e.id, e.vendor_id, e.kind, e.status, e.delta,
	e.amount_due, e.proof_of_payment, e.reason,
	e.requested_at, e.decided_at, e.decided_by, e.applied_at`

// scanEntry scans a single upgrade entry row. The columns must match the
// order defined in entryColumns.
func scanEntry(row pgx.Row) (*types.UpgradeEntry, error) {
	var e types.UpgradeEntry
	var proof, reason, decidedBy *string

	err := row.Scan(
		&e.ID,
		&e.VendorID,
		&e.Kind,
		&e.Status,
		&e.Delta,
		&e.AmountDue,
		&proof,
		&reason,
		&e.RequestedAt,
		&e.DecidedAt,
		&decidedBy,
		&e.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	if proof != nil {
		e.ProofOfPayment = *proof
	}
	if reason != nil {
		e.Reason = *reason
	}
	if decidedBy != nil {
		e.DecidedBy = *decidedBy
	}
	return &e, nil
}

// Append inserts a new upgrade entry. The caller sets the ID (prefixed
// UUID, e.g. "upg_...") and all immutable fields; there is no update path
// for them afterwards.
func (r *LedgerRepository) Append(ctx context.Context, entry *types.UpgradeEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO upgrade_entries (id, vendor_id, kind, status, delta,
		 amount_due, proof_of_payment, reason, requested_at, decided_at, decided_by, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), $10, $11, $12)`,
		entry.ID,
		entry.VendorID,
		entry.Kind,
		entry.Status,
		entry.Delta,
		entry.AmountDue,
		nilIfEmpty(entry.ProofOfPayment),
		nilIfEmpty(entry.Reason),
		nilIfZeroTime(entry.RequestedAt),
		entry.DecidedAt,
		nilIfEmpty(entry.DecidedBy),
		entry.AppliedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append upgrade entry", err)
	}
	return nil
}

// GetByID retrieves an upgrade entry by its ID.
// Returns ErrCodeNotFoundUpgrade if the id does not resolve.
func (r *LedgerRepository) GetByID(ctx context.Context, entryID string) (*types.UpgradeEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM upgrade_entries e
		 WHERE e.id = $1`,
		entryID,
	)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUpgrade, "upgrade entry not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve upgrade entry", err)
	}
	return entry, nil
}

// ListForVendor returns every entry for a vendor, oldest first. This is the
// read the capacity fold runs over; it includes terminal entries because
// rejected history is part of the audit surface.
func (r *LedgerRepository) ListForVendor(ctx context.Context, vendorID string) ([]*types.UpgradeEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM upgrade_entries e
		 WHERE e.vendor_id = $1
		 ORDER BY e.requested_at ASC, e.id ASC`,
		vendorID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list upgrade entries", err)
	}
	defer rows.Close()

	var entries []*types.UpgradeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan upgrade entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate upgrade entries", err)
	}
	return entries, nil
}

// defaultPendingLimit caps the admin pending-upgrades listing when the
// filter does not specify one.
const defaultPendingLimit = 50

// ListPending returns entries awaiting an admin decision (pending or
// pending_verification unless the filter narrows further), oldest first so
// the review queue is FIFO. Keyset pagination on (requested_at, id).
func (r *LedgerRepository) ListPending(ctx context.Context, filter types.PendingUpgradeFilter) ([]*types.UpgradeEntry, types.PageInfo, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []types.UpgradeStatus{types.UpgradeStatusPending, types.UpgradeStatusPendingVerification}
	}

	limit := filter.Page.Limit
	if limit <= 0 || limit > defaultPendingLimit {
		limit = defaultPendingLimit
	}

	query := `SELECT ` + entryColumns + `
		 FROM upgrade_entries e
		 WHERE e.status = ANY($1)`
	args := []any{statuses}

	if filter.VendorID != "" {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND e.vendor_id = $%d", len(args))
	}
	if filter.Page.Cursor != "" {
		after, afterID, err := decodePendingCursor(filter.Page.Cursor)
		if err != nil {
			return nil, types.PageInfo{}, err
		}
		args = append(args, after, afterID)
		query += fmt.Sprintf(" AND (e.requested_at, e.id) > ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY e.requested_at ASC, e.id ASC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending upgrades", err)
	}
	defer rows.Close()

	var entries []*types.UpgradeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pending upgrade", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate pending upgrades", err)
	}

	page := types.PageInfo{}
	if len(entries) > limit {
		entries = entries[:limit]
		page.HasMore = true
		page.NextCursor = encodePendingCursor(entries[len(entries)-1])
	}
	return entries, page, nil
}

// encodePendingCursor captures the keyset position of the last returned
// entry. Entry ids are random, so the cursor must carry requested_at too;
// the id only breaks ties between entries submitted in the same nanosecond.
func encodePendingCursor(e *types.UpgradeEntry) string {
	return strconv.FormatInt(e.RequestedAt.UTC().UnixNano(), 10) + ":" + e.ID
}

func decodePendingCursor(cursor string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(cursor, ":")
	if !ok || id == "" {
		return time.Time{}, "", types.NewAppError(types.ErrCodeValidationCursor, "malformed pagination cursor", nil)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", types.NewAppError(types.ErrCodeValidationCursor, "malformed pagination cursor", err)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}

// Transition performs the compare-and-swap that every workflow event runs
// through. It loads the entry, verifies the stored status matches expected,
// applies the mutation in memory, and writes the workflow fields back
// conditional on the status still being expected.
//
// Outcomes:
//   - entry missing            -> not_found_upgrade_entry
//   - stored status != expected -> invalid_state_transition (nothing written)
//   - CAS lost to a racer       -> conflict_concurrent_modification
//
// The apply func may only mutate workflow fields (Status, ProofOfPayment,
// Reason, DecidedAt, DecidedBy, AppliedAt); delta and amount are immutable
// once appended.
func (r *LedgerRepository) Transition(
	ctx context.Context,
	entryID string,
	expected types.UpgradeStatus,
	apply func(*types.UpgradeEntry),
) (*types.UpgradeEntry, error) {
	current, err := r.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if current.Status.Canonical() != expected.Canonical() {
		return nil, types.NewInvalidTransition(entryID, current.Status, "transition")
	}

	next := *current
	apply(&next)

	tag, err := r.db.Exec(ctx,
		`UPDATE upgrade_entries
		 SET status = $1,
		     proof_of_payment = $2,
		     reason = $3,
		     decided_at = $4,
		     decided_by = $5,
		     applied_at = $6
		 WHERE id = $7 AND status = $8`,
		next.Status,
		nilIfEmpty(next.ProofOfPayment),
		nilIfEmpty(next.Reason),
		next.DecidedAt,
		nilIfEmpty(next.DecidedBy),
		next.AppliedAt,
		entryID,
		current.Status,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to transition upgrade entry", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.NewAppError(types.ErrCodeConflictConcurrent, "upgrade entry was modified concurrently; retry from a fresh read", nil)
	}
	return &next, nil
}

// MarkApplied retires approved entries during compaction: their deltas have
// been folded into the vendor's base capacity, so they become inert
// history. Only approved entries flip; anything else in the id list is
// silently skipped, which keeps compaction idempotent.
func (r *LedgerRepository) MarkApplied(ctx context.Context, vendorID string, entryIDs []string, at time.Time) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE upgrade_entries
		 SET status = $1, applied_at = $2
		 WHERE vendor_id = $3 AND id = ANY($4) AND status = $5`,
		types.UpgradeStatusApplied,
		at,
		vendorID,
		entryIDs,
		types.UpgradeStatusApproved,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark entries applied", err)
	}
	return nil
}
