package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

type failingStore struct{}

func (failingStore) Append(context.Context, string, *model.Event) error {
	return errors.New("store down")
}

func (failingStore) Read(context.Context, string, time.Duration) ([]*model.Event, error) {
	return nil, errors.New("store down")
}

func (failingStore) Close() error { return nil }

func TestIngestStoresThenPublishes(t *testing.T) {
	env := newTestEnv(t)

	ev := env.connection(t, "w1", "c1", "request_sent")
	assert.Equal(t, model.TopicConnections, ev.Topic)
	assert.Equal(t, "w1", ev.WalletID)
	assert.Equal(t, "tenant", ev.Origin)
	assert.Equal(t, "request-sent", ev.State())
	assert.NotEmpty(t, ev.ID)

	stored, err := env.store.Read(context.Background(), "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{ev.ID}, eventIDs(stored...))
	assert.Equal(t, 1, env.pub.count())
}

func TestIngestDefaultsToAdminWallet(t *testing.T) {
	env := newTestEnv(t)

	ev := env.connection(t, "", "c1", "active")
	assert.Equal(t, model.DefaultAdminWalletID, ev.WalletID)

	stored, err := env.store.Read(context.Background(), model.DefaultAdminWalletID, time.Minute)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngestDropsUnmappedTopic(t *testing.T) {
	env := newTestEnv(t)

	ev, err := env.ingester.Ingest(context.Background(), model.RawWebhookEvent{
		Origin:     "tenant",
		AgentTopic: "ping",
		WalletID:   "w1",
		Payload:    map[string]any{"state": "active"},
	})
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrTopicUnmapped)
	assert.True(t, IsDropped(err))
	assert.Zero(t, env.pub.count())

	stored, err := env.store.Read(context.Background(), "w1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIngestDropsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ingester.Ingest(context.Background(), model.RawWebhookEvent{
		Origin:     "tenant",
		AgentTopic: "connections",
		WalletID:   "w1",
		Payload:    map[string]any{"state": "active"},
	})
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.True(t, IsDropped(err))
	assert.Zero(t, env.pub.count())
}

func TestIngestSurvivesStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ingester := NewIngester(failingStore{}, env.pub, discardLogger, "")

	ev, err := ingester.Ingest(context.Background(), model.RawWebhookEvent{
		AgentTopic: "connections",
		WalletID:   "w1",
		Payload:    map[string]any{"connection_id": "c1", "state": "active"},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1, env.pub.count())
}

func TestIngestReportsPublishFailure(t *testing.T) {
	env := newTestEnv(t)
	env.pub.err = errors.New("bus down")

	ev, err := env.ingester.Ingest(context.Background(), model.RawWebhookEvent{
		AgentTopic: "connections",
		WalletID:   "w1",
		Payload:    map[string]any{"connection_id": "c1", "state": "active"},
	})
	require.Error(t, err)
	assert.False(t, IsDropped(err))
	require.NotNil(t, ev)

	// The event still lands in the replay window.
	stored, rerr := env.store.Read(context.Background(), "w1", time.Minute)
	require.NoError(t, rerr)
	assert.Equal(t, []string{ev.ID}, eventIDs(stored...))
}
