package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/webhooks-service/config"
	"github.com/webitel/webhooks-service/infra/server/httpsrv"
	"github.com/webitel/webhooks-service/internal/domain/registry"
	"github.com/webitel/webhooks-service/internal/handler/lp"
	"github.com/webitel/webhooks-service/internal/handler/sse"
	"github.com/webitel/webhooks-service/internal/handler/webhook"
	"github.com/webitel/webhooks-service/internal/handler/ws"
	"github.com/webitel/webhooks-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("handler",
	fx.Provide(
		func(ingester *service.Ingester, logger *slog.Logger) *webhook.Handler {
			return webhook.NewHandler(ingester, logger.With("component", "webhook"))
		},
		func(streams service.Streamer, cfg *config.Config, logger *slog.Logger) *sse.SSEHandler {
			return sse.NewSSEHandler(streams, logger.With("component", "sse"), sse.Config{
				PingInterval:  cfg.SSE.PingInterval,
				MaxDuration:   cfg.SSE.MaxDuration,
				MaxAge:        cfg.Events.MaxAge,
				ReorderWindow: cfg.Wait.ReorderWindow,
			})
		},
		func(streams service.Streamer, cfg *config.Config, logger *slog.Logger) *ws.WSHandler {
			return ws.NewWSHandler(logger.With("component", "ws"), streams, ws.Config{
				PingInterval: cfg.WS.PingInterval,
				WriteTimeout: cfg.WS.WriteTimeout,
				MaxAge:       cfg.Events.MaxAge,
			})
		},
		func(waiter *service.Waiter, cfg *config.Config, logger *slog.Logger) *lp.LPHandler {
			return lp.NewLPHandler(waiter, logger.With("component", "lp"), cfg.Wait.DefaultTimeout, cfg.SSE.MaxDuration)
		},
		func(hub registry.Hubber) *OpsHandler { return NewOpsHandler(hub) },
	),
	fx.Invoke(RegisterRoutes),
)

type Routes struct {
	fx.In

	Router  chi.Router
	Auther  service.Auther
	Logger  *slog.Logger
	Webhook *webhook.Handler
	SSE     *sse.SSEHandler
	WS      *ws.WSHandler
	LP      *lp.LPHandler
	Ops     *OpsHandler
}

// RegisterRoutes mounts ingestion and health publicly and every delivery route behind
// the API key middleware.
func RegisterRoutes(p Routes) {
	p.Ops.RegisterPublic(p.Router)
	p.Webhook.Register(p.Router)

	p.Router.Group(func(r chi.Router) {
		r.Use(httpsrv.NewAuthMiddleware(p.Auther, p.Logger.With("component", "auth")))
		p.SSE.Register(r)
		p.WS.Register(r)
		p.LP.Register(r)
		p.Ops.RegisterProtected(r)
	})
}
