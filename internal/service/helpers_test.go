package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/domain/registry"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// hubPublisher broadcasts straight into the hub, the way the in-process bus does.
type hubPublisher struct {
	hub registry.Hubber

	mu        sync.Mutex
	published []*model.Event
	err       error
}

func (p *hubPublisher) Publish(_ context.Context, ev *model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ev)
	p.hub.Broadcast(ev)
	return nil
}

func (p *hubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type testEnv struct {
	hub      *registry.Hub
	store    *store.MemoryStore
	pub      *hubPublisher
	streams  *StreamManager
	ingester *Ingester
	waiter   *Waiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := registry.NewHub(registry.WithEvictionInterval(0), registry.WithMailboxSize(256))
	t.Cleanup(hub.Shutdown)
	es := store.NewMemoryStore(30*time.Second, 100)
	t.Cleanup(func() { _ = es.Close() })

	pub := &hubPublisher{hub: hub}
	streams := NewStreamManager(hub, es, discardLogger, 64, 30*time.Second)
	return &testEnv{
		hub:      hub,
		store:    es,
		pub:      pub,
		streams:  streams,
		ingester: NewIngester(es, pub, discardLogger, model.DefaultAdminWalletID),
		waiter:   NewWaiter(streams, discardLogger, time.Second, 200*time.Millisecond),
	}
}

func (e *testEnv) ingest(t *testing.T, walletID, agentTopic string, payload map[string]any) *model.Event {
	t.Helper()
	ev, err := e.ingester.Ingest(context.Background(), model.RawWebhookEvent{
		Origin:     "tenant",
		AgentTopic: agentTopic,
		WalletID:   walletID,
		Payload:    payload,
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) connection(t *testing.T, walletID, connectionID, state string) *model.Event {
	t.Helper()
	return e.ingest(t, walletID, "connections", map[string]any{"connection_id": connectionID, "state": state})
}

func (e *testEnv) endorsement(t *testing.T, walletID, transactionID, state string) *model.Event {
	t.Helper()
	return e.ingest(t, walletID, "endorse_transaction", map[string]any{"transaction_id": transactionID, "state": state})
}

// awaitSubscribers blocks until the hub holds n subscriptions.
func (e *testEnv) awaitSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.Len() == n }, time.Second, 5*time.Millisecond)
}

func nextEvent(t *testing.T, s *Stream) *model.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func eventIDs(evs ...*model.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}
