package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/webhooks-service/infra/server/httpsrv"
	"github.com/webitel/webhooks-service/internal/domain/registry"
)

// OpsHandler serves liveness and hub statistics.
type OpsHandler struct {
	hub registry.Hubber
}

func NewOpsHandler(hub registry.Hubber) *OpsHandler {
	return &OpsHandler{hub: hub}
}

func (h *OpsHandler) RegisterPublic(r chi.Router) {
	r.Get("/health", h.Health)
}

func (h *OpsHandler) RegisterProtected(r chi.Router) {
	r.Get("/stats", h.Stats)
}

func (h *OpsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httpsrv.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats exposes per-key subscription counts; administrative scope only.
func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !httpsrv.IsAdmin(r) {
		httpsrv.WriteError(w, http.StatusForbidden, "administrative scope required")
		return
	}
	httpsrv.WriteJSON(w, http.StatusOK, h.hub.Stats())
}
