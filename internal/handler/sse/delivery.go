package sse

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
	"golang.org/x/sync/errgroup"
)

const LookbackParam = "lookback_time"

// errMatched ends a stream whose URL names a desired state once it was delivered.
var errMatched = errors.New("desired state delivered")

type Config struct {
	PingInterval  time.Duration
	MaxDuration   time.Duration
	MaxAge        time.Duration
	ReorderWindow time.Duration
}

type SSEHandler struct {
	streams service.Streamer
	logger  *slog.Logger
	cfg     Config
}

func NewSSEHandler(streams service.Streamer, logger *slog.Logger, cfg Config) *SSEHandler {
	return &SSEHandler{streams: streams, logger: logger, cfg: cfg}
}

func (h *SSEHandler) Register(r chi.Router) {
	r.Get("/sse/{wallet_id}", h.Stream)
	r.Get("/sse/{wallet_id}/{topic}", h.Stream)
	r.Get("/sse/{wallet_id}/{topic}/{desired_state}", h.Stream)
	r.Get("/sse/{wallet_id}/{topic}/{field}/{field_id}", h.Stream)
	r.Get("/sse/{wallet_id}/{topic}/{field}/{field_id}/{desired_state}", h.Stream)
}

// Stream serves every SSE shape; absent path parameters simply widen the filter.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
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
	if filter.Topic != "" && !filter.Topic.Valid() {
		httpsrv.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", filter.Topic))
		return
	}
	lookback, err := httpsrv.SecondsParam(r, LookbackParam, h.cfg.MaxAge)
	if err != nil {
		httpsrv.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpsrv.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 1. [SUBSCRIBE] Registration and replay happen before the first byte is sent.
	stream, err := h.streams.Open(r.Context(), service.StreamRequest{
		WalletID: walletID,
		Topic:    filter.Topic,
		Lookback: lookback,
		Duration: h.cfg.MaxDuration,
	})
	if err != nil {
		h.logger.Error("STREAM_OPEN_FAILED", "wallet_id", walletID, "err", err)
		httpsrv.WriteError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l := h.logger.With("wallet_id", walletID, "filter", filter.String())
	l.Debug("SSE_OPENED")

	matcher := service.NewMatcher(filter)
	window := time.Duration(0)
	if matcher.TracksEndorsements() {
		window = h.cfg.ReorderWindow
	}
	batches := make(chan []*model.Event)

	g, ctx := errgroup.WithContext(r.Context())

	// 2. [PRODUCER] Stream.Batch blocks, so it runs apart from the writer.
	g.Go(func() error {
		defer close(batches)
		for {
			batch, err := stream.Batch(ctx, window)
			if err != nil {
				return nil
			}
			select {
			case batches <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	})

	// 3. [WRITER] Sole owner of the ResponseWriter. The ping doubles as disconnect detection.
	g.Go(func() error {
		ticker := time.NewTicker(h.pingInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return err
				}
				flusher.Flush()
			case batch, ok := <-batches:
				if !ok {
					return nil
				}
				for _, ev := range matcher.Filter(batch) {
					if err := writeEvent(w, ev); err != nil {
						return err
					}
					flusher.Flush()
					if filter.DesiredState != "" {
						return errMatched
					}
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errMatched) && !errors.Is(err, context.Canceled) {
		l.Debug("SSE_WRITE_FAILED", "err", err)
	}
	l.Debug("SSE_CLOSED", "dropped", stream.Dropped())
}

func (h *SSEHandler) pingInterval() time.Duration {
	if h.cfg.PingInterval > 0 {
		return h.cfg.PingInterval
	}
	return 15 * time.Second
}

func writeEvent(w http.ResponseWriter, ev *model.Event) error {
	data, err := marshaller.MarshallEvent(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
