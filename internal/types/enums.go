package types

// VendorStatus represents the account lifecycle state of a vendor.
type VendorStatus string

const (
	VendorStatusPending     VendorStatus = "pending_approval"
	VendorStatusActive      VendorStatus = "active"
	VendorStatusDeactivated VendorStatus = "deactivated"
)

// UpgradeKind identifies how an upgrade entry came into existence.
// Vendor-requested entries go through the payment workflow; admin_* entries
// are immediately effective overrides.
type UpgradeKind string

const (
	UpgradeKindRequested   UpgradeKind = "requested"
	UpgradeKindAdminGrant  UpgradeKind = "admin_grant"
	UpgradeKindAdminReduce UpgradeKind = "admin_reduce"
	UpgradeKindAdminSet    UpgradeKind = "admin_set"
)

// IsAdmin reports whether the kind is an admin-initiated override.
func (k UpgradeKind) IsAdmin() bool {
	return k == UpgradeKindAdminGrant || k == UpgradeKindAdminReduce || k == UpgradeKindAdminSet
}

// UpgradeStatus is the workflow state of an upgrade ledger entry.
//
// Valid paths:
//
//	pending -> pending_verification -> approved -> applied
//	pending -> approved
//	pending | pending_verification | approved -> rejected
//
// "completed" is accepted as an inbound alias for "approved" (the two labels
// described the same state in earlier revisions of the platform); the
// canonical stored value is always "approved".
type UpgradeStatus string

const (
	UpgradeStatusPending             UpgradeStatus = "pending"
	UpgradeStatusPendingVerification UpgradeStatus = "pending_verification"
	UpgradeStatusApproved            UpgradeStatus = "approved"
	UpgradeStatusRejected            UpgradeStatus = "rejected"
	UpgradeStatusApplied             UpgradeStatus = "applied"
)

// Canonical maps legacy status labels onto their canonical value.
func (s UpgradeStatus) Canonical() UpgradeStatus {
	if s == "completed" {
		return UpgradeStatusApproved
	}
	return s
}

// Terminal reports whether no further transitions are permitted.
// applied entries are inert history; rejected entries are excluded from
// capacity math and cannot be revived.
func (s UpgradeStatus) Terminal() bool {
	return s == UpgradeStatusRejected || s == UpgradeStatusApplied
}

// CountsTowardCapacity reports whether an entry in this status contributes
// its delta to effective capacity. Applied entries do not: compaction moves
// their delta into the vendor's base capacity in the same transaction that
// marks them applied, so counting them again would double the fold.
func (s UpgradeStatus) CountsTowardCapacity() bool {
	return s == UpgradeStatusApproved
}

// UpgradeDecision is an admin's verdict on a pending upgrade entry.
type UpgradeDecision string

const (
	DecisionApprove UpgradeDecision = "approve"
	DecisionReject  UpgradeDecision = "reject"
)

// CapacityOp identifies an admin capacity override operation.
type CapacityOp string

const (
	CapacityOpGrant  CapacityOp = "grant"
	CapacityOpReduce CapacityOp = "reduce"
	CapacityOpSet    CapacityOp = "set"
)

// DenyReason classifies why the Quota Guard refused a customer addition.
type DenyReason string

const (
	DenyReasonRestricted   DenyReason = "restricted"
	DenyReasonLimitReached DenyReason = "limit_reached"
)

// Disco identifies an electricity distribution company. Pricing is
// configured per DISCO.
type Disco string

const (
	DiscoABA   Disco = "ABA"
	DiscoIKEDC Disco = "IKEDC"
	DiscoIBEDC Disco = "IBEDC"
	DiscoAEDC  Disco = "AEDC"
	DiscoBEDC  Disco = "BEDC"
	DiscoEEDC  Disco = "EEDC"
	DiscoKEDCO Disco = "KEDCO"
)

// AllDiscos lists every DISCO the platform can price. Used by validators.
var AllDiscos = []Disco{DiscoABA, DiscoIKEDC, DiscoIBEDC, DiscoAEDC, DiscoBEDC, DiscoEEDC, DiscoKEDCO}

// ValidDisco reports whether d names a known distribution company.
func ValidDisco(d Disco) bool {
	for _, known := range AllDiscos {
		if d == known {
			return true
		}
	}
	return false
}

// ActivityType identifies the kind of vendor activity recorded for the
// dashboard feed.
type ActivityType string

const (
	ActivityCustomerAdded    ActivityType = "customer_added"
	ActivityUpgradeRequested ActivityType = "upgrade_requested"
	ActivityProofAttached    ActivityType = "proof_attached"
	ActivityUpgradeDecided   ActivityType = "upgrade_decided"
	ActivityCapacityAdjusted ActivityType = "capacity_adjusted"
	ActivityAdditionToggled  ActivityType = "addition_toggled"
)
