package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	infrapubsub "github.com/webitel/webhooks-service/infra/pubsub"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"go.opentelemetry.io/otel/trace"
)

// Metadata keys carried next to the encoded record.
const (
	MetadataTraceID  = "trace_id"
	MetadataWalletID = "wallet_id"
	MetadataTopic    = "topic"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the ingestion side to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev *model.Event) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
	topic     string
}

// NewEventDispatcher publishes every canonical event onto a single bus topic.
func NewEventDispatcher(pub message.Publisher, topic string) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		topic:     topic,
	}
}

// NewProviderDispatcher binds the dispatcher to the process-wide bus provider.
func NewProviderDispatcher(p infrapubsub.Provider, topic string) EventDispatcher {
	return NewEventDispatcher(p.Publisher(), topic)
}

func (d *eventDispatcher) Publish(ctx context.Context, ev *model.Event) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := model.EncodeRecord(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataWalletID, ev.WalletID)
	msg.Metadata.Set(MetadataTopic, ev.Topic.String())
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.Metadata.Set(MetadataTraceID, sc.TraceID().String())
	}

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
