package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	infrapubsub "github.com/webitel/webhooks-service/infra/pubsub"
	"github.com/webitel/webhooks-service/internal/adapter/pubsub"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/domain/registry"
)

const testTopic = "webhooks.events"

func startRouter(t *testing.T, hub registry.Hubber) message.Publisher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := infrapubsub.NewGoChannelProvider(16, watermill.NopLogger{})

	router, err := NewWatermillRouter(watermill.NopLogger{})
	require.NoError(t, err)
	NewEventHandler(hub, logger).RegisterHandlers(router, p.Subscriber(), testTopic)

	go func() { _ = router.Run(context.Background()) }()
	select {
	case <-router.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not start")
	}
	t.Cleanup(func() {
		_ = router.Close()
		_ = p.Close()
	})
	return p.Publisher()
}

func receive(t *testing.T, sub registry.Subscription) *model.Event {
	t.Helper()
	select {
	case ev := <-sub.Recv():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestBusDeliversPublishedEventsToHub(t *testing.T) {
	hub := registry.NewHub(registry.WithEvictionInterval(0))
	t.Cleanup(hub.Shutdown)
	sub := registry.NewSubscription(context.Background(), model.SubscriptionKey{WalletID: "w1"}, 8)
	hub.Register(sub)

	ch := startRouter(t, hub)
	dispatcher := pubsub.NewEventDispatcher(ch, testTopic)

	ev := model.NewEvent(model.TopicConnections, "w1", "tenant", "", &model.Connection{ConnectionID: "c1", State: "completed"})
	require.NoError(t, dispatcher.Publish(context.Background(), ev))

	got := receive(t, sub)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "completed", got.State())
}

func TestBusPreservesPublishOrder(t *testing.T) {
	hub := registry.NewHub(registry.WithEvictionInterval(0))
	t.Cleanup(hub.Shutdown)
	byWallet := registry.NewSubscription(context.Background(), model.SubscriptionKey{WalletID: "w1"}, 256)
	byTopic := registry.NewSubscription(context.Background(), model.SubscriptionKey{WalletID: "w1", Topic: model.TopicConnections}, 256)
	hub.Register(byWallet)
	hub.Register(byTopic)

	dispatcher := pubsub.NewEventDispatcher(startRouter(t, hub), testTopic)

	sent := make([]string, 0, 200)
	for range 200 {
		ev := model.NewEvent(model.TopicConnections, "w1", "tenant", "", &model.Connection{ConnectionID: "c1", State: "active"})
		sent = append(sent, ev.ID)
		require.NoError(t, dispatcher.Publish(context.Background(), ev))
	}

	for _, sub := range []registry.Subscription{byWallet, byTopic} {
		got := make([]string, 0, len(sent))
		for range sent {
			got = append(got, receive(t, sub).ID)
		}
		assert.Equal(t, sent, got, "subscription %s", sub.Key())
	}
}

func TestBusAcknowledgesUndecodableMessages(t *testing.T) {
	hub := registry.NewHub(registry.WithEvictionInterval(0))
	t.Cleanup(hub.Shutdown)
	sub := registry.NewSubscription(context.Background(), model.SubscriptionKey{}, 8)
	hub.Register(sub)

	ch := startRouter(t, hub)
	require.NoError(t, ch.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	require.NoError(t, ch.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte(`{"id":"x","topic":"ping","payload":{}}`))))

	ev := model.NewEvent(model.TopicOOB, "w2", "tenant", "", &model.OutOfBand{OOBID: "o1", State: "done"})
	require.NoError(t, pubsub.NewEventDispatcher(ch, testTopic).Publish(context.Background(), ev))

	assert.Equal(t, ev.ID, receive(t, sub).ID)
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set(pubsub.MetadataTraceID, "abc")
	_, err := h(msg)
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)

	msg = message.NewMessage(watermill.NewUUID(), nil)
	_, err = h(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, msg.Metadata.Get(pubsub.MetadataTraceID))
}
