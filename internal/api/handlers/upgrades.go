// Package handlers contains the HTTP handler implementations for the
// VendHub API. Each handler declares local service interfaces so tests can
// inject lightweight fakes without pulling in the concrete service wiring.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vendhub/internal/core"
	"vendhub/internal/types"
	"vendhub/internal/upgrade"
)

// UpgradeService is the contract the upgrade handler needs from the upgrade
// workflow service. Mirrors the concrete upgrade.Service methods it uses.
type UpgradeService interface {
	Submit(ctx context.Context, vendorID string, units int, actorID string) (*types.UpgradeEntry, error)
	AttachProof(ctx context.Context, entryID string, proofRef string, actor types.Actor) (*types.UpgradeEntry, error)
	Decide(ctx context.Context, entryID string, decision types.UpgradeDecision, reason string, actorID string) (*types.UpgradeEntry, error)
	Cancel(ctx context.Context, entryID string, actor types.Actor) (*types.UpgradeEntry, error)
	GetEntry(ctx context.Context, entryID string, actor types.Actor) (*types.UpgradeEntry, error)
	ListPending(ctx context.Context, filter types.PendingUpgradeFilter) ([]*types.UpgradeEntry, types.PageInfo, error)
	Compact(ctx context.Context, vendorID string, actorID string) (*upgrade.CompactionResult, error)
}

// SubmitUpgradeRequest is the request body for POST /v1/upgrades.
// VendorID is only honored for admin actors; vendor actors always submit
// for their own vendor.
type SubmitUpgradeRequest struct {
	VendorID string `json:"vendor_id,omitempty"`
	Units    int    `json:"units" validate:"required"`
}

// AttachProofRequest is the request body for POST /v1/upgrades/{id}/proof.
type AttachProofRequest struct {
	ProofRef string `json:"proof_ref" validate:"required,max=512"`
}

// DecideUpgradeRequest is the request body for POST /v1/upgrades/{id}/decision.
type DecideUpgradeRequest struct {
	Decision types.UpgradeDecision `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string                `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UpgradeHandler manages the payment-backed upgrade workflow endpoints.
type UpgradeHandler struct {
	svc       UpgradeService
	validator *core.Validator
	logger    *slog.Logger
}

// NewUpgradeHandler creates a new UpgradeHandler with the provided dependencies.
func NewUpgradeHandler(svc UpgradeService, v *core.Validator, l *slog.Logger) *UpgradeHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UpgradeHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts upgrade routes on the provided chi.Router. The
// server passes a RequireAdmin middleware so admin-only routes can be
// guarded without importing core's Server here.
func (h *UpgradeHandler) RegisterRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/upgrades", func(r chi.Router) {
		r.Post("/", h.Submit)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Cancel)
			r.Post("/proof", h.AttachProof)
			r.With(requireAdmin).Post("/decision", h.Decide)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/upgrades/pending", h.ListPending)
		r.Post("/vendors/{id}/compact", h.Compact)
	})
}

// Submit handles POST /v1/upgrades. Vendor actors submit for their own
// vendor; admins may submit on behalf of any vendor by naming it in the body.
func (h *UpgradeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req SubmitUpgradeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	vendorID, err := resolveVendorID(actor, req.VendorID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.svc.Submit(r.Context(), vendorID, req.Units, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: entry})
}

// Get handles GET /v1/upgrades/{id}. Vendor actors only see entries on
// their own ledger.
func (h *UpgradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	entry, err := h.svc.GetEntry(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}

// AttachProof handles POST /v1/upgrades/{id}/proof. Re-attaching replaces
// the previous reference without changing the entry's status.
func (h *UpgradeHandler) AttachProof(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req AttachProofRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.svc.AttachProof(r.Context(), chi.URLParam(r, "id"), req.ProofRef, actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}

// Decide handles POST /v1/upgrades/{id}/decision (admin only). Rejection
// requires a reason; approval of an already-approved entry is refused by
// the service with an invalid-transition error.
func (h *UpgradeHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req DecideUpgradeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.svc.Decide(r.Context(), chi.URLParam(r, "id"), req.Decision, req.Reason, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}

// Cancel handles DELETE /v1/upgrades/{id}. Vendors may withdraw their own
// undecided entries; the ledger keeps the entry as rejected.
func (h *UpgradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	entry, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}

// ListPending handles GET /v1/admin/upgrades/pending (admin only).
// Supports vendor_id, limit, and cursor query parameters.
func (h *UpgradeHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	filter := types.PendingUpgradeFilter{
		VendorID: r.URL.Query().Get("vendor_id"),
		Page: types.PageInfo{
			Cursor: r.URL.Query().Get("cursor"),
		},
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				nil,
				map[string]any{"limit": rawLimit},
			))
			return
		}
		filter.Page.Limit = limit
	}

	entries, page, err := h.svc.ListPending(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: entries,
		Meta: &types.ResponseMeta{Pagination: &page},
	})
}

// Compact handles POST /v1/admin/vendors/{id}/compact (admin only). Folds
// the vendor's approved deltas into base capacity and archives the retired
// entries.
func (h *UpgradeHandler) Compact(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	result, err := h.svc.Compact(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// resolveVendorID picks the vendor a request acts on. Vendor actors are
// pinned to their own vendor; admin and system actors must name one.
func resolveVendorID(actor types.Actor, requested string) (string, error) {
	if actor.Role == types.RoleVendor {
		if requested != "" && requested != actor.VendorID {
			return "", types.NewAppError(
				types.ErrCodePermissionVendorMismatch,
				"vendor actors may only act on their own vendor",
				nil,
			)
		}
		return actor.VendorID, nil
	}
	if requested == "" {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"vendor_id is required for admin requests",
			nil,
			map[string]any{"vendor_id": "required"},
		)
	}
	return requested, nil
}
