package httpsrv

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/webhooks-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		NewRouter,
		func(cfg *config.Config, router chi.Router, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP, router, logger.With("component", "http"))
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.Start()
			},
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
