package types

import (
	"context"
	"time"
)

// CustomerCounter is the outbound contract the quota core requires from the
// customer-management subsystem: nothing but a live count per vendor.
type CustomerCounter interface {
	CountCustomers(ctx context.Context, vendorID string) (int, error)
}

// VendorStore is the persistence contract for the vendor aggregate.
// Writes that touch capacity state carry the expected ledger version;
// implementations fail them with ErrCodeConflictConcurrent when the stored
// version has moved, and the caller retries from a fresh read.
type VendorStore interface {
	GetByID(ctx context.Context, id string) (*Vendor, error)
	SetAddEnabled(ctx context.Context, id string, enabled bool, mod Modification, expectedVersion int64) error
	CompactBaseCapacity(ctx context.Context, id string, delta int, mod Modification, expectedVersion int64) error
	TouchModification(ctx context.Context, id string, mod Modification, expectedVersion int64) error
}

// LedgerStore is the append-only persistence contract for upgrade entries.
// Transition is a compare-and-swap on (entryID, expectedStatus): it returns
// ErrCodeInvalidStateTransition without writing when the stored status is
// not the expected one.
type LedgerStore interface {
	Append(ctx context.Context, entry *UpgradeEntry) error
	GetByID(ctx context.Context, entryID string) (*UpgradeEntry, error)
	ListForVendor(ctx context.Context, vendorID string) ([]*UpgradeEntry, error)
	ListPending(ctx context.Context, filter PendingUpgradeFilter) ([]*UpgradeEntry, PageInfo, error)
	Transition(ctx context.Context, entryID string, expected UpgradeStatus, apply func(*UpgradeEntry)) (*UpgradeEntry, error)
	MarkApplied(ctx context.Context, vendorID string, entryIDs []string, at time.Time) error
}

// EventPublisher is the fire-and-forget notification sink. Publish failures
// MUST NOT fail the core operation that produced the event; implementations
// log and move on.
type EventPublisher interface {
	Publish(ctx context.Context, event UpgradeEvent)
}

// ActivityRecorder appends to the vendor activity feed. Like the event
// publisher, it is best-effort from the caller's point of view.
type ActivityRecorder interface {
	Record(ctx context.Context, activity *Activity) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the
// platform.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
