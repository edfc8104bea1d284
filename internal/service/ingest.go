package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/webitel/webhooks-service/internal/service")

// Publisher hands a canonical event to the broadcast side.
type Publisher interface {
	Publish(ctx context.Context, ev *model.Event) error
}

// Ingester drives Normalizer -> Transformer -> Event Store -> Publisher for one callback.
type Ingester struct {
	store       store.EventStore
	publisher   Publisher
	logger      *slog.Logger
	adminWallet string
}

func NewIngester(es store.EventStore, publisher Publisher, logger *slog.Logger, adminWallet string) *Ingester {
	if adminWallet == "" {
		adminWallet = model.DefaultAdminWalletID
	}
	return &Ingester{
		store:       es,
		publisher:   publisher,
		logger:      logger,
		adminWallet: adminWallet,
	}
}

// Ingest normalizes raw and distributes it. Unmappable input is logged and reported as
// ErrTopicUnmapped / ErrNoTransformer / ErrMalformedPayload; callers must not surface
// those to the emitting agent.
func (i *Ingester) Ingest(ctx context.Context, raw model.RawWebhookEvent) (*model.Event, error) {
	ctx, span := tracer.Start(ctx, "webhook.ingest")
	defer span.End()

	if raw.WalletID == "" {
		raw.WalletID = i.adminWallet
	}
	span.SetAttributes(
		attribute.String("webhook.origin", raw.Origin),
		attribute.String("webhook.agent_topic", raw.AgentTopic),
		attribute.String("webhook.wallet_id", raw.WalletID),
	)

	l := i.logger.With("origin", raw.Origin, "agent_topic", raw.AgentTopic, "wallet_id", raw.WalletID)

	// [NORMALIZATION]
	topic, ok := NormalizeTopic(raw.AgentTopic)
	if !ok {
		l.Warn("TOPIC_UNMAPPED")
		return nil, fmt.Errorf("%w: %q", ErrTopicUnmapped, raw.AgentTopic)
	}

	// [TRANSFORMATION]
	payload, err := Transform(topic, raw.AgentTopic, raw.Payload)
	if err != nil {
		l.Warn("PAYLOAD_DROPPED", "topic", topic, "err", err)
		return nil, err
	}
	ev := model.NewEvent(topic, raw.WalletID, raw.Origin, raw.GroupID, payload)
	span.SetAttributes(attribute.String("event.id", ev.ID), attribute.String("event.topic", topic.String()))

	// [PERSISTENCE] Append strictly before broadcasting, so a subscriber that registers
	// after the broadcast still finds the event in its replay read.
	if err := i.store.Append(ctx, ev.WalletID, ev); err != nil {
		// Replay is best-effort; live delivery goes on.
		l.Error("STORE_APPEND_FAILED", "event_id", ev.ID, "err", err)
	}

	// [FAN_OUT_DISPATCH]
	if err := i.publisher.Publish(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		l.Error("EVENT_PUBLISH_FAILED", "event_id", ev.ID, "err", err)
		return ev, fmt.Errorf("publish event %s: %w", ev.ID, err)
	}

	l.Debug("EVENT_INGESTED", "event_id", ev.ID, "topic", topic, "state", ev.State())
	return ev, nil
}

// IsDropped reports whether err means the event was filtered out rather than failed.
func IsDropped(err error) bool {
	return errors.Is(err, ErrTopicUnmapped) || errors.Is(err, ErrNoTransformer) || errors.Is(err, ErrMalformedPayload)
}
