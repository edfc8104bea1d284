package bus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/webhooks-service/config"
	infrapubsub "github.com/webitel/webhooks-service/infra/pubsub"
	"github.com/webitel/webhooks-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("bus-handler",
	fx.Provide(
		func(hub registry.Hubber, logger *slog.Logger) *EventHandler {
			return NewEventHandler(hub, logger.With("component", "bus"))
		},
		func(logger watermill.LoggerAdapter) (*message.Router, error) {
			return NewWatermillRouter(logger)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, h *EventHandler, router *message.Router, p infrapubsub.Provider, cfg *config.Config, logger *slog.Logger) {
		h.RegisterHandlers(router, p.Subscriber(), cfg.Bus.Topic)

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("BUS_ROUTER_STOPPED", "err", err)
					}
				}()
				// [READINESS] Subscriptions exist before the first webhook is accepted.
				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
	}),
)
