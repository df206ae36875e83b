package session

import (
	"net/http"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

// Handler exposes the cash session endpoints.
type Handler struct {
	Svc *Service
}

type openPayload struct {
	// zero is a legal opening float, so no presence check here
	OpeningFloat money.Amount `json:"openingFloat" validate:"gte=0"`
}

type closePayload struct {
	CountedAmount money.Amount `json:"countedAmount" validate:"gte=0"`
	Note          *string      `json:"note,omitempty"`
}

type movementPayload struct {
	Kind        string       `json:"kind" validate:"required,oneof=cash_in cash_out expense"`
	Description string       `json:"description" validate:"required"`
	Amount      money.Amount `json:"amount" validate:"required"`
}

// Open opens a new cash session for the register.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var payload openPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	opened, err := h.Svc.Open(r.Context(), money.Money(payload.OpeningFloat))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"message": "cash session opened",
		"session": opened,
	})
}

// Current returns the open session, with a null session when none is open.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	current, err := h.Svc.Current(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"session": current})
}

// Close closes the open session with the counted drawer amount.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var payload closePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	result, err := h.Svc.Close(r.Context(), money.Money(payload.CountedAmount), payload.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"message":        "cash session closed",
		"session":        result.Session,
		"reconciliation": result.Reconciliation,
	})
}

// CreateMovement records an ad-hoc cash movement.
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var payload movementPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	id, err := h.Svc.RecordMovement(r.Context(), backend.MovementKind(payload.Kind), payload.Description, money.Money(payload.Amount))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"message":    "movement recorded",
		"movementId": id,
	})
}

// ListMovements lists the open session's movements.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Svc.Movements(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

// ListPayments lists the payments committed during the open session.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Svc.Payments(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}
