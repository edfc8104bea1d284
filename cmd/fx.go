package cmd

import (
	"log/slog"

	"github.com/webitel/webhooks-service/config"
	infrapubsub "github.com/webitel/webhooks-service/infra/pubsub"
	"github.com/webitel/webhooks-service/infra/server/httpsrv"
	"github.com/webitel/webhooks-service/internal/adapter/pubsub"
	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/registry"
	"github.com/webitel/webhooks-service/internal/handler"
	"github.com/webitel/webhooks-service/internal/handler/bus"
	"github.com/webitel/webhooks-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(appOptions(cfg)...)
}

func appOptions(cfg *config.Config) []fx.Option {
	return []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvidePubSub,
			ProvideTracerProvider,
			func(p infrapubsub.Provider, cfg *config.Config) pubsub.EventDispatcher {
				return pubsub.NewProviderDispatcher(p, cfg.Bus.Topic)
			},
			func(d pubsub.EventDispatcher) service.Publisher { return d },
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.Invoke(InstallTracerProvider),
		registry.Module,
		store.Module,
		service.Module,
		// The consumer must be running before the listener accepts webhooks.
		bus.Module,
		handler.Module,
		httpsrv.Module,
	}
}
