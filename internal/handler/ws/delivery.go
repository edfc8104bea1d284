package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/webitel/webhooks-service/infra/server/httpsrv"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/handler/marshaller"
	"github.com/webitel/webhooks-service/internal/service"
	"golang.org/x/sync/errgroup"
)

const (
	GroupIDParam  = "group_id"
	LookbackParam = "lookback_time"

	// CloseReasonUnauthorized is sent as a text frame and as the reason of close code 1008
	// for a scope mismatch.
	CloseReasonUnauthorized = "Unauthorized"

	maxClientMessage = 4 << 10
)

var errClientGone = errors.New("client closed the connection")

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	MaxAge       time.Duration
}

type WSHandler struct {
	logger   *slog.Logger
	streams  service.Streamer
	cfg      Config
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, streams service.Streamer, cfg Config) *WSHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &WSHandler{
		logger:  logger,
		streams: streams,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			// Callers are authenticated by API key, not by origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Register(r chi.Router) {
	r.Get("/ws/topic/{topic}", h.TopicStream)
	r.Get("/ws/{wallet_id}", h.WalletStream)
	r.Get("/ws/{wallet_id}/{topic}", h.WalletStream)
}

// WalletStream serves /ws/{wallet_id}[/{topic}] for the wallet's own tenant or an admin.
func (h *WSHandler) WalletStream(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "wallet_id")
	h.serve(w, r, walletID, chi.URLParam(r, "topic"), httpsrv.Authorized(r, walletID))
}

// TopicStream serves /ws/topic/{topic}: every wallet's events, administrative scope only.
func (h *WSHandler) TopicStream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "", chi.URLParam(r, "topic"), httpsrv.IsAdmin(r))
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, walletID, topicParam string, authorized bool) {
	topic := model.Topic(topicParam)
	if topic != "" && !topic.Valid() {
		httpsrv.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", topic))
		return
	}
	lookback, err := httpsrv.SecondsParam(r, LookbackParam, 0)
	if err != nil {
		httpsrv.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	lookback = min(lookback, h.cfg.MaxAge)

	// 1. UPGRADE TO WEBSOCKET
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "err", err)
		return
	}
	defer conn.Close()

	// 2. [AUTHORIZATION] Accepted first so the client gets a proper close code.
	if !authorized {
		h.logger.Info("WS_UNAUTHORIZED", "wallet_id", walletID, "topic", topic)
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(CloseReasonUnauthorized))
		h.closeWith(conn, websocket.ClosePolicyViolation, CloseReasonUnauthorized)
		return
	}

	// 3. SUBSCRIBE
	stream, err := h.streams.Open(r.Context(), service.StreamRequest{WalletID: walletID, Topic: topic, Lookback: lookback})
	if err != nil {
		h.logger.Error("STREAM_OPEN_FAILED", "wallet_id", walletID, "err", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer stream.Close()

	filter := service.Filter{GroupID: r.URL.Query().Get(GroupIDParam)}
	l := h.logger.With("wallet_id", walletID, "topic", topic, "group_id", filter.GroupID)
	l.Info("WS_OPENED")

	g, ctx := errgroup.WithContext(r.Context())

	// 4. [READ_PUMP] Client frames are ignored; reading surfaces close frames and pongs.
	g.Go(func() error {
		conn.SetReadLimit(maxClientMessage)
		if h.cfg.PingInterval > 0 {
			pongWait := 2 * h.cfg.PingInterval
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return errClientGone
			}
		}
	})

	// 5. [WRITE_PUMP]
	g.Go(func() error {
		for {
			ev, err := stream.Next(ctx)
			if err != nil {
				return err
			}
			if !filter.Match(ev) {
				continue
			}
			data, err := marshaller.MarshallEvent(ev)
			if err != nil {
				l.Error("WS_MARSHAL_FAILED", "event_id", ev.ID, "err", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	})

	// 6. [KEEPALIVE] WriteControl is safe alongside WriteMessage.
	g.Go(func() error {
		if h.cfg.PingInterval <= 0 {
			<-ctx.Done()
			return nil
		}
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return err
				}
			}
		}
	})

	// Unblocks the read pump once any pump has finished.
	g.Go(func() error {
		<-ctx.Done()
		h.closeWith(conn, websocket.CloseNormalClosure, "")
		_ = conn.Close()
		return nil
	})

	err = g.Wait()
	l.Info("WS_CLOSED", "reason", err, "dropped", stream.Dropped())
}

func (h *WSHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
}
