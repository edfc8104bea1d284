package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

func TestDispatcherPublishesRecord(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := ch.Subscribe(ctx, "webhooks.events")
	require.NoError(t, err)

	d := NewEventDispatcher(ch, "webhooks.events")
	ev := model.NewEvent(model.TopicProofs, "w1", "tenant", "g1", &model.PresentationExchange{ProofID: "v2-p1", State: "done"})
	require.NoError(t, d.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "w1", msg.Metadata.Get(MetadataWalletID))
		assert.Equal(t, "proofs", msg.Metadata.Get(MetadataTopic))

		got, err := model.DecodeRecord(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, "g1", got.GroupID)
		assert.Equal(t, "v2-p1", got.Payload.(*model.PresentationExchange).ProofID)
	case <-time.After(time.Second):
		t.Fatal("message not published")
	}
}

func TestDispatcherRejectsNil(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()
	assert.Error(t, NewEventDispatcher(ch, "webhooks.events").Publish(context.Background(), nil))
}
