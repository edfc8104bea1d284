package service

import (
	"log/slog"

	"github.com/webitel/webhooks-service/config"
	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		func(hub registry.Hubber, es store.EventStore, cfg *config.Config, logger *slog.Logger) *StreamManager {
			return NewStreamManager(hub, es, logger.With("component", "streams"), cfg.Hub.QueueSize, cfg.Events.MaxAge)
		},
		func(m *StreamManager) Streamer { return m },
		func(es store.EventStore, pub Publisher, cfg *config.Config, logger *slog.Logger) *Ingester {
			return NewIngester(es, pub, logger.With("component", "ingest"), cfg.Events.AdminWalletID)
		},
		func(streams Streamer, cfg *config.Config, logger *slog.Logger) *Waiter {
			return NewWaiter(streams, logger.With("component", "waiter"), cfg.Wait.Lookback, cfg.Wait.ReorderWindow)
		},
		func(cfg *config.Config, logger *slog.Logger) Auther {
			a := NewAPIKeyAuther(cfg.Auth.AdminAPIKey, cfg.Auth.TenantSecret, cfg.Events.AdminWalletID)
			if a.Disabled() {
				logger.Warn("AUTH_DISABLED: every delivery caller gets the administrative scope")
			}
			return a
		},
	),
)
