package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vendhub/internal/core"
	"vendhub/internal/types"
)

// PricingReader answers price lookups for vending flows.
type PricingReader interface {
	PriceFor(ctx context.Context, disco types.Disco) (*types.DiscoPricing, error)
	Active(ctx context.Context) ([]*types.DiscoPricing, error)
}

// PricingWriter is the admin maintenance surface for the pricing table.
type PricingWriter interface {
	Upsert(ctx context.Context, pricing *types.DiscoPricing) error
	SetActive(ctx context.Context, disco types.Disco, active bool) error
}

// UpsertPricingRequest is the request body for PUT /v1/admin/pricing/{disco}.
type UpsertPricingRequest struct {
	PricePerUnit int64 `json:"price_per_unit" validate:"required,min=1"`
}

// SetPricingStatusRequest is the request body for
// POST /v1/admin/pricing/{disco}/status.
type SetPricingStatusRequest struct {
	Active bool `json:"active"`
}

// PricingHandler serves DISCO tariff reads and admin maintenance.
type PricingHandler struct {
	reader    PricingReader
	writer    PricingWriter
	validator *core.Validator
	logger    *slog.Logger
}

// NewPricingHandler creates a new PricingHandler with the provided dependencies.
func NewPricingHandler(reader PricingReader, writer PricingWriter, v *core.Validator, l *slog.Logger) *PricingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PricingHandler{reader: reader, writer: writer, validator: v, logger: l}
}

// RegisterRoutes mounts pricing routes on the provided chi.Router.
func (h *PricingHandler) RegisterRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/pricing", func(r chi.Router) {
		r.Get("/", h.ListActive)
		r.Get("/{disco}", h.Get)
	})

	r.Route("/admin/pricing/{disco}", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Put("/", h.Upsert)
		r.Post("/status", h.SetStatus)
	})
}

// ListActive handles GET /v1/pricing.
func (h *PricingHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	rates, err := h.reader.Active(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rates})
}

// Get handles GET /v1/pricing/{disco}. Suspended DISCOs answer with a
// not-found pricing error rather than a stale rate.
func (h *PricingHandler) Get(w http.ResponseWriter, r *http.Request) {
	pricing, err := h.reader.PriceFor(r.Context(), types.Disco(chi.URLParam(r, "disco")))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pricing})
}

// Upsert handles PUT /v1/admin/pricing/{disco} (admin only).
func (h *PricingHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	disco := types.Disco(chi.URLParam(r, "disco"))
	if !types.ValidDisco(disco) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDisco,
			"unknown distribution company",
			nil,
			map[string]any{"disco": string(disco)},
		))
		return
	}

	var req UpsertPricingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	pricing := &types.DiscoPricing{
		Disco:        disco,
		PricePerUnit: req.PricePerUnit,
		Active:       true,
	}
	if err := h.writer.Upsert(r.Context(), pricing); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pricing})
}

// SetStatus handles POST /v1/admin/pricing/{disco}/status (admin only).
// Deactivating a DISCO suspends vending for its meters without losing the
// configured rate.
func (h *PricingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	disco := types.Disco(chi.URLParam(r, "disco"))
	if !types.ValidDisco(disco) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDisco,
			"unknown distribution company",
			nil,
			map[string]any{"disco": string(disco)},
		))
		return
	}

	var req SetPricingStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.writer.SetActive(r.Context(), disco, req.Active); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"disco":  disco,
		"active": req.Active,
	}})
}
