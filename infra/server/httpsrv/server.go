package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/webhooks-service/config"
)

// NewRouter builds the root chi router shared by every handler module.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	return r
}

// Server owns the listener and the lifetime of every streaming request.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
	addr   string

	shutdownTimeout time.Duration

	// baseCtx parents every request; cancelling it ends SSE, WS and long-poll streams
	// that http.Server.Shutdown would otherwise wait for.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	listener net.Listener
	done     chan struct{}
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *slog.Logger) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:          logger,
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
		baseCtx:         baseCtx,
		cancelBase:      cancel,
		done:            make(chan struct{}),
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 10 * time.Second
	}

	s.srv = &http.Server{
		Handler: handler,
		// No write timeout: delivery responses are long-lived streams.
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVE_FAILED", "err", err)
		}
	}()

	s.logger.Info("HTTP_SERVER_LISTENING", "addr", ln.Addr().String())
	return nil
}

// Addr is the resolved listen address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop ends open streams and drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelBase()

	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if s.listener != nil {
		<-s.done
	}
	s.logger.Info("HTTP_SERVER_STOPPED")
	return nil
}
