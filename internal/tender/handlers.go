package tender

import (
	"net/http"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

// Handler exposes the tender method endpoints.
type Handler struct {
	Svc *Service
}

// List returns the active tender methods.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	methods, err := h.Svc.List(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"methods": methods})
}

// Refresh invalidates the cached method list.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Refresh(r.Context()); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"message": "tender methods refreshed"})
}
