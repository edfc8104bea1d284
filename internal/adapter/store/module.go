package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/webhooks-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(NewEventStore),
	fx.Invoke(func(lc fx.Lifecycle, s EventStore) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
	}),
)

// NewEventStore builds the replay store selected by store.driver.
func NewEventStore(cfg *config.Config, logger *slog.Logger) (EventStore, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		s, err := NewRedisStore(context.Background(), cfg.Store.RedisURL, cfg.Events.MaxAge, cfg.Store.MaxEntriesPerWallet,
			WithRedisLogger(logger.With("component", "store")),
		)
		if err != nil {
			return nil, err
		}
		logger.Info("STORE_READY", "driver", config.StoreRedis)
		return s, nil
	case config.StoreMemory:
		logger.Info("STORE_READY", "driver", config.StoreMemory)
		return NewMemoryStore(cfg.Events.MaxAge, cfg.Store.MaxEntriesPerWallet), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
