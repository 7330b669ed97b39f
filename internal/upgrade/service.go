// Package upgrade implements the capacity upgrade workflow: vendor
// purchase requests, proof-of-payment handoff, admin decisions, admin
// capacity overrides, and ledger compaction. All state lives in the vendor
// aggregate and its append-only upgrade ledger; this package owns every
// transition between ledger states.
package upgrade

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vendhub/internal/types"
)

// trimmedProof normalizes a proof-of-payment reference; over-long
// references are truncated rather than rejected because the value is
// opaque to the platform.
func trimmedProof(ref string) string {
	ref = strings.TrimSpace(ref)
	if len(ref) > types.MaxProofRefLength {
		ref = ref[:types.MaxProofRefLength]
	}
	return ref
}

// CustomerStore is the customer-side contract the upgrade and capacity
// paths need: live counts plus the capacity-guarded enrollment write.
type CustomerStore interface {
	CountCustomers(ctx context.Context, vendorID string) (int, error)
	InsertWithinCapacity(ctx context.Context, customer *types.Customer, limit int) (bool, error)
}

// TxManager abstracts transactional execution for compaction, where the
// vendor base-capacity fold and the entry retirement must land together.
// The callback receives transaction-scoped stores.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, vendors types.VendorStore, ledger types.LedgerStore) error) error
}

// Service implements the upgrade workflow state machine and the admin
// override operations.
type Service struct {
	vendors    types.VendorStore
	ledger     types.LedgerStore
	customers  CustomerStore
	activities types.ActivityRecorder
	events     types.EventPublisher
	tx         TxManager
	archiver   *Archiver
	policy     types.QuotaPolicy
	clock      types.Clock
	logger     *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Vendors    types.VendorStore
	Ledger     types.LedgerStore
	Customers  CustomerStore
	Activities types.ActivityRecorder
	Events     types.EventPublisher
	TxManager  TxManager
	Archiver   *Archiver
	Policy     types.QuotaPolicy
	Clock      types.Clock
	Logger     *slog.Logger
}

// NewService creates a new upgrade Service. If Policy is zero-valued, the
// default pricing applies. If Clock is nil, RealClock is used. If Logger is
// nil, slog.Default() is used.
func NewService(cfg ServiceConfig) *Service {
	policy := cfg.Policy
	if policy.UnitSize == 0 {
		policy = types.DefaultQuotaPolicy()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		vendors:    cfg.Vendors,
		ledger:     cfg.Ledger,
		customers:  cfg.Customers,
		activities: cfg.Activities,
		events:     cfg.Events,
		tx:         cfg.TxManager,
		archiver:   cfg.Archiver,
		policy:     policy,
		clock:      clock,
		logger:     logger,
	}
}

// vendorCancelReason marks entries a vendor withdrew before a decision.
// Cancellation is modelled as a rejection so the audit trail keeps a single
// terminal shape for abandoned requests.
const vendorCancelReason = "vendor_cancelled"

// Submit opens a new purchase request for the given vendor. Units must be
// a whole number of blocks within the configured bounds; the price is
// fixed at submission and never recomputed. The entry starts in pending
// and contributes nothing to capacity until approved.
func (s *Service) Submit(ctx context.Context, vendorID string, units int, actorID string) (*types.UpgradeEntry, error) {
	if err := s.policy.ValidateUnits(units); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if vendor.Status != types.VendorStatusActive {
		return nil, types.NewAppError(types.ErrCodeVendorNotApproved, "vendor account is not active", nil)
	}

	entry := &types.UpgradeEntry{
		ID:          "upg_" + uuid.New().String(),
		VendorID:    vendor.ID,
		Kind:        types.UpgradeKindRequested,
		Status:      types.UpgradeStatusPending,
		Delta:       units,
		AmountDue:   s.policy.PriceFor(units),
		RequestedAt: s.clock.Now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, vendor.ID, types.ActivityUpgradeRequested, actorID, map[string]any{
		"entry_id":   entry.ID,
		"units":      units,
		"amount_due": entry.AmountDue,
	})
	s.publish(ctx, "upgrade.requested", entry, actorID, "")
	return entry, nil
}

// AttachProof records the vendor's proof of payment and moves the entry to
// pending_verification. Re-attaching while already in pending_verification
// replaces the proof and leaves the status alone, so a corrected transfer
// reference does not need admin involvement.
func (s *Service) AttachProof(ctx context.Context, entryID string, proofRef string, actor types.Actor) (*types.UpgradeEntry, error) {
	proofRef = trimmedProof(proofRef)
	if proofRef == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "proof of payment reference is required", nil)
	}

	current, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeVendor(actor, current.VendorID); err != nil {
		return nil, err
	}

	expected := current.Status.Canonical()
	if expected != types.UpgradeStatusPending && expected != types.UpgradeStatusPendingVerification {
		return nil, types.NewInvalidTransition(entryID, current.Status, "attach_proof")
	}

	entry, err := s.ledger.Transition(ctx, entryID, expected, func(e *types.UpgradeEntry) {
		e.Status = types.UpgradeStatusPendingVerification
		e.ProofOfPayment = proofRef
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, entry.VendorID, types.ActivityProofAttached, actor.ID, map[string]any{
		"entry_id": entry.ID,
	})
	s.publish(ctx, "upgrade.proof_attached", entry, actor.ID, "")
	return entry, nil
}

// Decide applies an admin verdict to a request. Approval is allowed from
// pending or pending_verification and makes the delta count toward
// capacity immediately. Rejection is allowed from the same states and,
// as a reversal, from approved; it always requires a reason. A reversal
// removes the delta from capacity but never touches already-enrolled
// customers, so usage can temporarily sit above the limit.
func (s *Service) Decide(ctx context.Context, entryID string, decision types.UpgradeDecision, reason string, actorID string) (*types.UpgradeEntry, error) {
	current, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expected := current.Status.Canonical()

	var entry *types.UpgradeEntry
	switch decision {
	case types.DecisionApprove:
		if expected != types.UpgradeStatusPending && expected != types.UpgradeStatusPendingVerification {
			return nil, types.NewInvalidTransition(entryID, current.Status, "approve")
		}
		entry, err = s.ledger.Transition(ctx, entryID, expected, func(e *types.UpgradeEntry) {
			e.Status = types.UpgradeStatusApproved
			e.DecidedAt = &now
			e.DecidedBy = actorID
		})

	case types.DecisionReject:
		if err := types.ValidateReason(reason); err != nil {
			return nil, err
		}
		if expected != types.UpgradeStatusPending &&
			expected != types.UpgradeStatusPendingVerification &&
			expected != types.UpgradeStatusApproved {
			return nil, types.NewInvalidTransition(entryID, current.Status, "reject")
		}
		entry, err = s.ledger.Transition(ctx, entryID, expected, func(e *types.UpgradeEntry) {
			e.Status = types.UpgradeStatusRejected
			e.Reason = reason
			e.DecidedAt = &now
			e.DecidedBy = actorID
		})

	default:
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"decision must be approve or reject",
			nil,
			map[string]any{"decision": string(decision)},
		)
	}
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, entry.VendorID, types.ActivityUpgradeDecided, actorID, map[string]any{
		"entry_id": entry.ID,
		"decision": string(decision),
		"reason":   entry.Reason,
	})
	s.publish(ctx, "upgrade."+string(entry.Status), entry, actorID, entry.Reason)
	return entry, nil
}

// Cancel withdraws a vendor's own request before any admin decision. The
// entry terminates as rejected with a fixed cancellation reason; approved
// entries must go through an admin reversal instead.
func (s *Service) Cancel(ctx context.Context, entryID string, actor types.Actor) (*types.UpgradeEntry, error) {
	current, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeVendor(actor, current.VendorID); err != nil {
		return nil, err
	}

	expected := current.Status.Canonical()
	if expected != types.UpgradeStatusPending && expected != types.UpgradeStatusPendingVerification {
		return nil, types.NewInvalidTransition(entryID, current.Status, "cancel")
	}

	now := s.clock.Now()
	entry, err := s.ledger.Transition(ctx, entryID, expected, func(e *types.UpgradeEntry) {
		e.Status = types.UpgradeStatusRejected
		e.Reason = vendorCancelReason
		e.DecidedAt = &now
		e.DecidedBy = actor.ID
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, entry.VendorID, types.ActivityUpgradeDecided, actor.ID, map[string]any{
		"entry_id": entry.ID,
		"decision": "cancel",
	})
	s.publish(ctx, "upgrade.cancelled", entry, actor.ID, vendorCancelReason)
	return entry, nil
}

// GetEntry returns one ledger entry, with vendor actors restricted to
// their own entries.
func (s *Service) GetEntry(ctx context.Context, entryID string, actor types.Actor) (*types.UpgradeEntry, error) {
	entry, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeVendor(actor, entry.VendorID); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListPending returns the admin review queue, oldest first.
func (s *Service) ListPending(ctx context.Context, filter types.PendingUpgradeFilter) ([]*types.UpgradeEntry, types.PageInfo, error) {
	return s.ledger.ListPending(ctx, filter)
}

// authorizeVendor rejects vendor actors operating on another vendor's
// records. Admin and system actors pass.
func (s *Service) authorizeVendor(actor types.Actor, vendorID string) error {
	if actor.Role == types.RoleVendor && actor.VendorID != vendorID {
		return types.NewAppError(types.ErrCodePermissionVendorMismatch, "entry belongs to another vendor", nil)
	}
	return nil
}

// recordActivity appends to the activity feed. Failures are logged and
// swallowed: the feed is derived data and must not fail the operation that
// produced it.
func (s *Service) recordActivity(ctx context.Context, vendorID string, activityType types.ActivityType, actorID string, metadata map[string]any) {
	if s.activities == nil {
		return
	}
	err := s.activities.Record(ctx, &types.Activity{
		VendorID: vendorID,
		Type:     activityType,
		ActorID:  actorID,
		Metadata: metadata,
	})
	if err != nil {
		s.logger.Error("failed to record activity",
			"vendor_id", vendorID,
			"type", string(activityType),
			"error", err,
		)
	}
}

// publish sends a workflow event to the notification queue. Fire and
// forget: the publisher logs its own failures.
func (s *Service) publish(ctx context.Context, eventType string, entry *types.UpgradeEntry, actorID string, reason string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, types.UpgradeEvent{
		EventID:   "evt_" + uuid.New().String(),
		EventType: eventType,
		VendorID:  entry.VendorID,
		EntryID:   entry.ID,
		Status:    entry.Status,
		Delta:     entry.Delta,
		ActorID:   actorID,
		Reason:    reason,
		Timestamp: s.clock.Now(),
	})
}
