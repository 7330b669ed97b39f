package types

import (
	"time"
)

// Vendor is the aggregate that owns capacity state and the upgrade ledger.
//
// BaseCapacity is the compacted floor of the vendor's customer quota;
// effective capacity is always BaseCapacity plus the fold over ledger
// entries (quota.EffectiveCapacity). LedgerVersion guards every
// read-modify-write on capacity state with optimistic concurrency.
type Vendor struct {
	ID           string       `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	BusinessName string       `json:"business_name" db:"business_name"`
	Status       VendorStatus `json:"status" db:"status"`

	BaseCapacity        int  `json:"base_capacity" db:"base_capacity"`
	CustomersAddEnabled bool `json:"customers_add_enabled" db:"customers_add_enabled"`

	// LedgerVersion increments on every capacity-affecting write.
	LedgerVersion int64 `json:"-" db:"ledger_version"`

	LastModification *Modification `json:"last_modification,omitempty" db:"last_modification"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// Modification records who last touched a vendor's capacity state and why.
type Modification struct {
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
	Reason  string    `json:"reason,omitempty"`
}

// UpgradeEntry is one append-only unit of capacity-affecting history.
// Entries never move between vendors and are never physically deleted;
// rejected entries remain for audit but are excluded from capacity math.
type UpgradeEntry struct {
	ID       string        `json:"id" db:"id"`
	VendorID string        `json:"vendor_id" db:"vendor_id"`
	Kind     UpgradeKind   `json:"kind" db:"kind"`
	Status   UpgradeStatus `json:"status" db:"status"`

	// Delta is signed: positive grows capacity, negative shrinks it.
	// Vendor-requested deltas are always positive multiples of the
	// configured unit size.
	Delta int `json:"delta" db:"delta"`

	// AmountDue is the purchase price in kobo-free naira. Zero for
	// admin-initiated entries.
	AmountDue int64 `json:"amount_due" db:"amount_due"`

	// ProofOfPayment is an opaque reference (upload key, bank transfer
	// reference) supplied by the vendor; the core never interprets it.
	ProofOfPayment string `json:"proof_of_payment,omitempty" db:"proof_of_payment"`

	Reason string `json:"reason,omitempty" db:"reason"`

	RequestedAt time.Time  `json:"requested_at" db:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	DecidedBy   string     `json:"decided_by,omitempty" db:"decided_by"`
	AppliedAt   *time.Time `json:"applied_at,omitempty" db:"applied_at"`
}

// QuotaDecision is the Quota Guard's verdict on an add-customer attempt.
// Current and Limit are always populated on denial so callers can render
// "X/Y used".
type QuotaDecision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Current int        `json:"current"`
	Limit   int        `json:"limit"`
}

// CapacitySnapshot combines a vendor's effective capacity with live usage
// for the capacity dashboard endpoint.
type CapacitySnapshot struct {
	VendorID            string `json:"vendor_id"`
	BaseCapacity        int    `json:"base_capacity"`
	EffectiveCapacity   int    `json:"effective_capacity"`
	CustomerCount       int    `json:"customer_count"`
	PendingUpgradeUnits int    `json:"pending_upgrade_units"`
	CustomersAddEnabled bool   `json:"customers_add_enabled"`
}

// Customer is a meter enrolled under exactly one vendor. The capacity core
// only ever reads counts; full customer management lives outside it.
type Customer struct {
	ID          string    `json:"id" db:"id"`
	VendorID    string    `json:"vendor_id" db:"vendor_id"`
	MeterNumber string    `json:"meter_number" db:"meter_number"`
	Disco       Disco     `json:"disco" db:"disco"`
	Verified    bool      `json:"verified" db:"verified"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DiscoPricing is the configured price per token unit for one DISCO.
type DiscoPricing struct {
	Disco        Disco     `json:"disco" db:"disco"`
	PricePerUnit int64     `json:"price_per_unit" db:"price_per_unit"`
	Active       bool      `json:"active" db:"active"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Activity is one row of the vendor dashboard feed.
type Activity struct {
	ID       int64        `json:"id" db:"id"`
	VendorID string       `json:"vendor_id" db:"vendor_id"`
	Type     ActivityType `json:"type" db:"type"`
	ActorID  string       `json:"actor_id" db:"actor_id"`
	// Metadata carries entry IDs, amounts, reasons; schema varies by Type.
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// APIKey is an issued credential. The plaintext secret is shown once at
// issuance; only its bcrypt hash is stored.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	SecretHash string     `json:"-" db:"secret_hash"`
	Role       ActorRole  `json:"role" db:"role"`
	VendorID   string     `json:"vendor_id,omitempty" db:"vendor_id"`
	Label      string     `json:"label" db:"label"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Revoked reports whether the key has been withdrawn.
func (k *APIKey) Revoked() bool { return k.RevokedAt != nil }

// PendingUpgradeFilter narrows the admin pending-upgrades listing.
type PendingUpgradeFilter struct {
	VendorID string          `json:"vendor_id,omitempty"`
	Statuses []UpgradeStatus `json:"statuses,omitempty"`
	Page     PageInfo        `json:"page"`
}

// UpgradeEvent is the message published to the notification queue whenever
// an upgrade entry changes state or an admin adjusts capacity. Consumed by
// cmd/notify-worker.
type UpgradeEvent struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"` // e.g. "upgrade.approved"
	VendorID  string        `json:"vendor_id"`
	EntryID   string        `json:"entry_id,omitempty"`
	Status    UpgradeStatus `json:"status,omitempty"`
	Delta     int           `json:"delta,omitempty"`
	ActorID   string        `json:"actor_id"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
