package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/config"
)

func TestNewProviderGoChannel(t *testing.T) {
	p, err := NewProvider(config.BusConfig{Driver: config.BusGoChannel, BufferSize: 8}, "node-1", watermill.NopLogger{})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, config.BusGoChannel, p.Driver())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := p.Subscriber().Subscribe(ctx, "webhooks.events")
	require.NoError(t, err)

	published := make(chan error, 1)
	go func() {
		published <- p.Publisher().Publish("webhooks.events", message.NewMessage(watermill.NewUUID(), []byte(`{"id":"1"}`)))
	}()

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"id":"1"}`, string(msg.Payload))

		// Publish returns only once the consumer acked.
		select {
		case <-published:
			t.Fatal("publish returned before ack")
		case <-time.After(50 * time.Millisecond):
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after ack")
	}
}

func TestNewProviderUnknownDriver(t *testing.T) {
	_, err := NewProvider(config.BusConfig{Driver: "kafka"}, "node-1", watermill.NopLogger{})
	assert.Error(t, err)
}
