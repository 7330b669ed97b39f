package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vendhub/internal/core"
	"vendhub/internal/types"
)

// EnrollmentService is the contract the customer handler needs: the
// capacity-guarded admission path.
type EnrollmentService interface {
	EnrollCustomer(ctx context.Context, vendorID string, meterNumber string, disco types.Disco, actorID string) (*types.Customer, types.QuotaDecision, error)
}

// EnrollCustomerRequest is the request body for POST /v1/customers.
// VendorID is only honored for admin actors.
type EnrollCustomerRequest struct {
	VendorID    string      `json:"vendor_id,omitempty"`
	MeterNumber string      `json:"meter_number" validate:"required,meter_number"`
	Disco       types.Disco `json:"disco" validate:"required,disco"`
}

// EnrollCustomerResponse pairs the admitted customer with the quota
// decision that let them in.
type EnrollCustomerResponse struct {
	Customer *types.Customer     `json:"customer"`
	Decision types.QuotaDecision `json:"decision"`
}

// CustomerHandler serves customer enrollment under the capacity guard.
type CustomerHandler struct {
	svc       EnrollmentService
	validator *core.Validator
	logger    *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler with the provided dependencies.
func NewCustomerHandler(svc EnrollmentService, v *core.Validator, l *slog.Logger) *CustomerHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CustomerHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts customer routes on the provided chi.Router.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/customers", h.Enroll)
}

// Enroll handles POST /v1/customers. A denial is not an error: the response
// carries the decision with Allowed=false and a 409 status so clients can
// distinguish a full roster from a broken request.
func (h *CustomerHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "Authentication required", nil))
		return
	}

	var req EnrollCustomerRequest
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

	customer, decision, err := h.svc.EnrollCustomer(r.Context(), vendorID, req.MeterNumber, req.Disco, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := EnrollCustomerResponse{Customer: customer, Decision: decision}
	if !decision.Allowed {
		core.JSON(w, r, http.StatusConflict, core.APIResponse{Data: resp})
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: resp})
}
