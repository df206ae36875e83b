package tabs

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

// Handler exposes tab lookup endpoints.
type Handler struct {
	Svc *Service
}

// Resolve looks a tab up by its number or barcode.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	tab, err := h.Svc.Resolve(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"tab": tab})
}

// ListOpen lists every open tab.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	open, err := h.Svc.ListOpen(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"tabs": open})
}

type cancelItemPayload struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelItem voids one order line with a reason.
func (h *Handler) CancelItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		common.RenderError(w, common.ValidationError("item id must be numeric"))
		return
	}
	var payload cancelItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Svc.CancelItem(r.Context(), itemID, payload.Reason); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"message": "item cancelled"})
}
