package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vendhub/internal/core"
	"vendhub/internal/types"
)

// CapacityService is the contract the capacity handler needs from the
// upgrade service: the read-side snapshot plus the admin override surface.
type CapacityService interface {
	Snapshot(ctx context.Context, vendorID string) (*types.CapacitySnapshot, error)
	CheckAddition(ctx context.Context, vendorID string) (types.QuotaDecision, error)
	Grant(ctx context.Context, vendorID string, amount int, reason string, actorID string) (*types.UpgradeEntry, error)
	Reduce(ctx context.Context, vendorID string, amount int, reason string, actorID string) (*types.UpgradeEntry, error)
	SetAbsolute(ctx context.Context, vendorID string, target int, reason string, actorID string) (*types.UpgradeEntry, error)
	SetAdditionEnabled(ctx context.Context, vendorID string, enabled bool, reason string, actorID string) error
}

// ActivityLister provides the vendor dashboard feed.
type ActivityLister interface {
	ListRecent(ctx context.Context, vendorID string, limit int) ([]*types.Activity, error)
}

// AdjustCapacityRequest is the request body for
// POST /v1/admin/vendors/{id}/capacity.
type AdjustCapacityRequest struct {
	Op     types.CapacityOp `json:"op" validate:"required,oneof=grant reduce set"`
	Amount int              `json:"amount"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

// ToggleAdditionRequest is the request body for
// POST /v1/admin/vendors/{id}/customer-addition.
type ToggleAdditionRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CapacityHandler serves capacity snapshots, the pre-flight addition check,
// admin overrides, and the vendor activity feed.
type CapacityHandler struct {
	svc        CapacityService
	activities ActivityLister
	validator  *core.Validator
	logger     *slog.Logger
}

// NewCapacityHandler creates a new CapacityHandler with the provided dependencies.
func NewCapacityHandler(svc CapacityService, activities ActivityLister, v *core.Validator, l *slog.Logger) *CapacityHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CapacityHandler{svc: svc, activities: activities, validator: v, logger: l}
}

// RegisterRoutes mounts capacity routes on the provided chi.Router.
func (h *CapacityHandler) RegisterRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/vendors/{id}", func(r chi.Router) {
		r.Get("/capacity", h.Snapshot)
		r.Post("/capacity/check", h.CheckAddition)
		r.Get("/activity", h.Activity)
	})

	r.Route("/admin/vendors/{id}", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/capacity", h.Adjust)
		r.Post("/customer-addition", h.ToggleAddition)
	})
}

// Snapshot handles GET /v1/vendors/{id}/capacity.
func (h *CapacityHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	vendorID, err := h.scopedVendorID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.svc.Snapshot(r.Context(), vendorID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snapshot})
}

// CheckAddition handles POST /v1/vendors/{id}/capacity/check. This is the
// pre-flight probe; it changes nothing and its answer can go stale the
// moment it is produced.
func (h *CapacityHandler) CheckAddition(w http.ResponseWriter, r *http.Request) {
	vendorID, err := h.scopedVendorID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.svc.CheckAddition(r.Context(), vendorID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: decision})
}

// Activity handles GET /v1/vendors/{id}/activity with an optional limit
// query parameter.
func (h *CapacityHandler) Activity(w http.ResponseWriter, r *http.Request) {
	vendorID, err := h.scopedVendorID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				nil,
				map[string]any{"limit": rawLimit},
			))
			return
		}
	}

	feed, err := h.activities.ListRecent(r.Context(), vendorID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: feed})
}

// Adjust handles POST /v1/admin/vendors/{id}/capacity (admin only).
// Dispatches on the op field: grant and reduce are relative, set is
// absolute. A set that matches the current effective capacity writes
// nothing; the response then carries changed=false and a null entry next
// to the unchanged snapshot.
func (h *CapacityHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req AdjustCapacityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	vendorID := chi.URLParam(r, "id")

	var (
		entry *types.UpgradeEntry
		err   error
	)
	switch req.Op {
	case types.CapacityOpGrant:
		entry, err = h.svc.Grant(r.Context(), vendorID, req.Amount, req.Reason, actor.ID)
	case types.CapacityOpReduce:
		entry, err = h.svc.Reduce(r.Context(), vendorID, req.Amount, req.Reason, actor.ID)
	case types.CapacityOpSet:
		entry, err = h.svc.SetAbsolute(r.Context(), vendorID, req.Amount, req.Reason, actor.ID)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.svc.Snapshot(r.Context(), vendorID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"entry":    entry,
		"capacity": snapshot,
		"changed":  entry != nil,
	}})
}

// ToggleAddition handles POST /v1/admin/vendors/{id}/customer-addition
// (admin only). Freezing requires a reason; the service refuses a freeze
// without one.
func (h *CapacityHandler) ToggleAddition(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req ToggleAdditionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	vendorID := chi.URLParam(r, "id")
	if err := h.svc.SetAdditionEnabled(r.Context(), vendorID, req.Enabled, req.Reason, actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.svc.Snapshot(r.Context(), vendorID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snapshot})
}

// scopedVendorID resolves the path vendor against the calling actor. Vendor
// actors may only read their own vendor; admins read anyone.
func (h *CapacityHandler) scopedVendorID(r *http.Request) (string, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		return "", types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil)
	}

	vendorID := chi.URLParam(r, "id")
	if actor.Role == types.RoleVendor && actor.VendorID != vendorID {
		return "", types.NewAppError(
			types.ErrCodePermissionVendorMismatch,
			"vendor actors may only act on their own vendor",
			nil,
		)
	}
	return vendorID, nil
}
