package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/webitel/webhooks-service/config"
	infrapubsub "github.com/webitel/webhooks-service/infra/pubsub"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// ProvideLogger builds the process logger. The level follows config file edits at runtime.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))

	var h slog.Handler
	switch {
	case cfg.Log.OTel:
		// Records go to the global OTel LoggerProvider installed by the platform.
		h = otelslog.NewHandler(ServiceName, otelslog.WithVersion(version))
	case cfg.Log.Format == "text":
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(h).With(
		"service", ServiceName,
		"version", version,
		"commit", commit,
	)
	slog.SetDefault(logger)

	cfg.Watch(func(next *config.Config) {
		if lvl := parseLevel(next.Log.Level); lvl != level.Level() {
			level.Set(lvl)
			logger.Info("LOG_LEVEL_CHANGED", "level", lvl.String())
		}
	})
	return logger
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

// ProvidePubSub opens the bus. The node id keeps per-node AMQP queues apart.
func ProvidePubSub(lc fx.Lifecycle, cfg *config.Config, wlogger watermill.LoggerAdapter, logger *slog.Logger) (infrapubsub.Provider, error) {
	nodeID := uuid.NewString()[:8]
	p, err := infrapubsub.NewProvider(cfg.Bus, nodeID, wlogger)
	if err != nil {
		return nil, err
	}
	logger.Info("BUS_READY", "driver", p.Driver(), "node_id", nodeID, "topic", cfg.Bus.Topic)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.Close()
		},
	})
	return p, nil
}

func ProvideTracerProvider(lc fx.Lifecycle) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
			attribute.String("service.namespace", ServiceNamespace),
			attribute.String("service.version", version),
			attribute.String("vcs.branch", branch),
			attribute.String("vcs.commit_date", commitDate),
			attribute.String("build.timestamp", buildTimestamp),
		)),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}

// InstallTracerProvider makes the SDK provider the global one used by package tracers.
func InstallTracerProvider(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
}
