package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func connectionEvent(walletID, id, state string) *model.Event {
	return model.NewEvent(model.TopicConnections, walletID, "tenant", "", &model.Connection{ConnectionID: id, State: state})
}

func ids(evs []*model.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}

func TestMemoryStoreReadInOrder(t *testing.T) {
	s := NewMemoryStore(time.Minute, 10)
	defer s.Close()
	ctx := context.Background()

	e1 := connectionEvent("w1", "c1", "request-sent")
	e2 := connectionEvent("w1", "c1", "completed")
	other := connectionEvent("w2", "c9", "completed")
	require.NoError(t, s.Append(ctx, "w1", e1))
	require.NoError(t, s.Append(ctx, "w2", other))
	require.NoError(t, s.Append(ctx, "w1", e2))

	got, err := s.Read(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{e1.ID, e2.ID}, ids(got))
	assert.Equal(t, 2, s.Wallets())
}

func TestMemoryStoreZeroMaxAgeIsLiveOnly(t *testing.T) {
	s := NewMemoryStore(time.Minute, 10)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "w1", connectionEvent("w1", "c1", "completed")))

	got, err := s.Read(ctx, "w1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreExcludesAgedEntries(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(time.Hour, 10, WithClock(clock.Now))
	defer s.Close()
	ctx := context.Background()

	old := connectionEvent("w1", "c1", "request-sent")
	require.NoError(t, s.Append(ctx, "w1", old))
	clock.Advance(45 * time.Second)
	fresh := connectionEvent("w1", "c1", "completed")
	require.NoError(t, s.Append(ctx, "w1", fresh))

	got, err := s.Read(ctx, "w1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, ids(got), "aged entry is still stored but never returned")

	got, err = s.Read(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID, fresh.ID}, ids(got))
}

func TestMemoryStoreCapsEntriesPerWallet(t *testing.T) {
	s := NewMemoryStore(time.Minute, 3)
	defer s.Close()
	ctx := context.Background()

	var all []*model.Event
	for range 5 {
		ev := connectionEvent("w1", "c1", "active")
		all = append(all, ev)
		require.NoError(t, s.Append(ctx, "w1", ev))
	}

	got, err := s.Read(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ids(all[2:]), ids(got))
}

func TestMemoryStoreUnknownWallet(t *testing.T) {
	s := NewMemoryStore(time.Minute, 3)
	defer s.Close()

	got, err := s.Read(context.Background(), "nobody", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, got)
}
