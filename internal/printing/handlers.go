package printing

import (
	"net/http"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

// Handler exposes the print endpoints.
type Handler struct {
	Svc *Service
}

// Conference prints a conference slip for the active checkout.
func (h *Handler) Conference(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.PrintConference(r.Context()); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"message": "conference slip queued"})
}

// RetryFailed requeues failed print jobs on demand.
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	retried, err := h.Svc.RetryFailed(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"message": "failed print jobs requeued",
		"retried": retried,
	})
}
