package checkout

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

// Handler exposes the checkout group endpoints.
type Handler struct {
	Svc *Service
}

type addTabPayload struct {
	Identifier string `json:"identifier" validate:"required"`
}

type optionsPayload struct {
	ServiceChargeEnabled bool         `json:"serviceChargeEnabled"`
	Surcharge            money.Amount `json:"surcharge"`
	Discount             money.Amount `json:"discount"`
	SplitCount           int          `json:"splitCount"`
}

type paymentPayload struct {
	TenderMethodID int64        `json:"tenderMethodId" validate:"required,gt=0"`
	Amount         money.Amount `json:"amount" validate:"required"`
	Note           *string      `json:"note,omitempty"`
}

// Current returns the active checkout snapshot, null when none is active.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Svc.Current(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"checkout": snap})
}

// AddTab adds a tab to the active checkout.
func (h *Handler) AddTab(w http.ResponseWriter, r *http.Request) {
	var payload addTabPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	snap, err := h.Svc.AddTab(r.Context(), payload.Identifier)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"checkout": snap})
}

// RemoveTab takes a tab out of the active checkout.
func (h *Handler) RemoveTab(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.ParseInt(chi.URLParam(r, "tabID"), 10, 64)
	if err != nil {
		common.RenderError(w, common.ValidationError("tab id must be numeric"))
		return
	}
	snap, err := h.Svc.RemoveTab(r.Context(), tabID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"checkout": snap})
}

// SetOptions updates service charge, surcharge, discount and split count.
func (h *Handler) SetOptions(w http.ResponseWriter, r *http.Request) {
	var payload optionsPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	snap, err := h.Svc.SetOptions(r.Context(), Options{
		ServiceChargeEnabled: payload.ServiceChargeEnabled,
		Surcharge:            money.Money(payload.Surcharge),
		Discount:             money.Money(payload.Discount),
		SplitCount:           payload.SplitCount,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"checkout": snap})
}

// AddPayment stages one tender entry.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	entry, totals, err := h.Svc.AddPayment(r.Context(), payload.TenderMethodID, money.Money(payload.Amount), payload.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"payment": entry,
		"totals":  totals,
	})
}

// Finalize commits the settled checkout immediately.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	transactionID, err := h.Svc.Finalize(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"message":       "checkout finalized",
		"transacao_uuid": transactionID,
	})
}

// Cancel discards the active checkout without finalizing.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Cancel(r.Context()); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"message": "checkout cancelled"})
}
