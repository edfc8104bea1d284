package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/service"
)

const (
	HeaderWalletID = "x-wallet-id"
	HeaderGroupID  = "x-group-id"

	maxBodyBytes = 4 << 20
)

// Ingester is the part of service.Ingester the endpoint depends on.
type Ingester interface {
	Ingest(ctx context.Context, raw model.RawWebhookEvent) (*model.Event, error)
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewHandler(ingester Ingester, logger *slog.Logger) *Handler {
	return &Handler{ingester: ingester, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/{origin}/topic/{agent_topic}", h.Receive)
}

// Receive accepts one agent callback. It answers 204 whatever happens to the event, so
// agents never retry because of filtering decisions made here.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	raw := model.RawWebhookEvent{
		Origin:     chi.URLParam(r, "origin"),
		AgentTopic: chi.URLParam(r, "agent_topic"),
		WalletID:   r.Header.Get(HeaderWalletID),
		GroupID:    r.Header.Get(HeaderGroupID),
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw.Payload); err != nil {
		h.logger.Warn("BODY_UNREADABLE", "origin", raw.Origin, "agent_topic", raw.AgentTopic, "err", err)
		return
	}

	// The agent hanging up must not abort distribution of an accepted event.
	if _, err := h.ingester.Ingest(context.WithoutCancel(r.Context()), raw); err != nil && !service.IsDropped(err) {
		h.logger.Error("INGEST_FAILED", "origin", raw.Origin, "agent_topic", raw.AgentTopic, "err", err)
	}
}
