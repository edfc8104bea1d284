package lp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/webhooks-service/infra/server/httpsrv"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/handler/marshaller"
	"github.com/webitel/webhooks-service/internal/service"
)

const TimeoutParam = "timeout"

// Waiter is the blocking primitive behind the endpoint.
type Waiter interface {
	Wait(ctx context.Context, walletID string, f service.Filter, timeout time.Duration) (*model.Event, error)
}

type LPHandler struct {
	waiter         Waiter
	logger         *slog.Logger
	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

func NewLPHandler(waiter Waiter, logger *slog.Logger, defaultTimeout, maxTimeout time.Duration) *LPHandler {
	return &LPHandler{
		waiter:         waiter,
		logger:         logger,
		defaultTimeout: defaultTimeout,
		maxTimeout:     maxTimeout,
	}
}

func (h *LPHandler) Register(r chi.Router) {
	r.Get("/wait/{wallet_id}/{topic}/{desired_state}", h.Poll)
	r.Get("/wait/{wallet_id}/{topic}/{field}/{field_id}/{desired_state}", h.Poll)
}

// Poll holds the request until an event matching the path arrives (200 with the event)
// or the timeout elapses (408).
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "wallet_id")
	if !httpsrv.Authorized(r, walletID) {
		httpsrv.WriteError(w, http.StatusForbidden, "wallet scope mismatch")
		return
	}

	filter := service.Filter{
		Topic:        model.Topic(chi.URLParam(r, "topic")),
		Field:        chi.URLParam(r, "field"),
		FieldValue:   chi.URLParam(r, "field_id"),
		DesiredState: chi.URLParam(r, "desired_state"),
	}
	if !filter.Topic.Valid() {
		httpsrv.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", filter.Topic))
		return
	}
	timeout, err := httpsrv.SecondsParam(r, TimeoutParam, h.defaultTimeout)
	if err != nil || timeout == 0 {
		httpsrv.WriteError(w, http.StatusBadRequest, "timeout must be a positive number of seconds")
		return
	}
	if h.maxTimeout > 0 {
		timeout = min(timeout, h.maxTimeout)
	}

	ev, err := h.waiter.Wait(r.Context(), walletID, filter, timeout)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrWaitTimeout):
		httpsrv.WriteError(w, http.StatusRequestTimeout, err.Error())
		return
	case r.Context().Err() != nil:
		// Client disconnected.
		return
	default:
		h.logger.Error("WAIT_FAILED", "wallet_id", walletID, "filter", filter.String(), "err", err)
		httpsrv.WriteError(w, http.StatusInternalServerError, "wait failed")
		return
	}

	data, err := marshaller.MarshallEvent(ev)
	if err != nil {
		httpsrv.WriteError(w, http.StatusInternalServerError, "marshal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
