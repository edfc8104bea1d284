package store

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

var _ EventStore = (*MemoryStore)(nil)

// MemoryStore is the single-process replay buffer. Each wallet owns a capped ring;
// wallets without writes for a full max-age window are dropped by the cache janitor,
// since by then every entry they hold is unreadable anyway.
type MemoryStore struct {
	wallets    *ttlcache.Cache[string, *ring]
	maxEntries int
	now        Clock
}

type MemoryOption func(*MemoryStore)

func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) { s.now = c }
}

func NewMemoryStore(maxAge time.Duration, maxEntries int, opts ...MemoryOption) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	ttl := maxAge
	if ttl <= 0 {
		ttl = time.Minute
	}

	s := &MemoryStore{
		wallets: ttlcache.New(
			ttlcache.WithTTL[string, *ring](ttl),
			ttlcache.WithDisableTouchOnHit[string, *ring](), // reads must not keep a wallet alive
		),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.wallets.Start()
	return s
}

func (s *MemoryStore) Append(_ context.Context, walletID string, ev *model.Event) error {
	item := s.wallets.Get(walletID)
	if item == nil {
		item, _ = s.wallets.GetOrSet(walletID, newRing(s.maxEntries))
	}
	item.Value().push(entry{at: s.now(), ev: ev})

	// Writes extend the wallet's lifetime.
	s.wallets.Touch(walletID)
	return nil
}

func (s *MemoryStore) Read(_ context.Context, walletID string, maxAge time.Duration) ([]*model.Event, error) {
	if maxAge <= 0 {
		return nil, nil
	}
	item := s.wallets.Get(walletID)
	if item == nil {
		return nil, nil
	}
	return item.Value().since(s.now(), maxAge), nil
}

// Wallets returns the number of wallets currently holding a buffer.
func (s *MemoryStore) Wallets() int {
	return s.wallets.Len()
}

func (s *MemoryStore) Close() error {
	s.wallets.Stop()
	return nil
}

type entry struct {
	at time.Time
	ev *model.Event
}

// ring is a fixed-capacity FIFO; pushing into a full ring overwrites the oldest entry.
type ring struct {
	mu    sync.RWMutex
	buf   []entry
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]entry, capacity)}
}

func (r *ring) push(e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = e
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

// since returns, in insertion order, the events younger than maxAge.
func (r *ring) since(now time.Time, maxAge time.Duration) []*model.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Event, 0, r.count)
	for i := range r.count {
		e := r.buf[(r.head+i)%len(r.buf)]
		if within(now, e.at, maxAge) {
			out = append(out, e.ev)
		}
	}
	return out
}
