package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/domain/registry"
)

// Streamer is the primary interface for delivery handlers and the wait primitive.
type Streamer interface {
	Open(ctx context.Context, req StreamRequest) (*Stream, error)
}

// StreamRequest describes one client's interest.
type StreamRequest struct {
	// WalletID and Topic select the subscription key; empty values are wildcards.
	WalletID string
	Topic    model.Topic
	// Lookback is the replay depth, clamped to the system max age. Zero means live-only.
	Lookback time.Duration
	// Duration bounds the whole stream. Zero means until Close or ctx cancellation.
	Duration time.Duration
}

// StreamManager opens subscriptions seeded with the replay window.
type StreamManager struct {
	hub       registry.Hubber
	store     store.EventStore
	logger    *slog.Logger
	queueSize int
	maxAge    time.Duration
}

func NewStreamManager(hub registry.Hubber, es store.EventStore, logger *slog.Logger, queueSize int, maxAge time.Duration) *StreamManager {
	return &StreamManager{
		hub:       hub,
		store:     es,
		logger:    logger,
		queueSize: queueSize,
		maxAge:    maxAge,
	}
}

// Open registers a subscription first and reads the replay window second, so an event
// broadcast in between is at worst seen twice (and deduplicated), never lost.
func (m *StreamManager) Open(ctx context.Context, req StreamRequest) (*Stream, error) {
	key := model.SubscriptionKey{WalletID: req.WalletID, Topic: req.Topic}

	// 1. [REGISTRATION]
	sub := registry.NewSubscription(ctx, key, m.queueSize)
	m.hub.Register(sub)

	s := &Stream{
		sub:     sub,
		hub:     m.hub,
		expired: make(chan struct{}),
	}

	// 2. [REPLAY] Events are partitioned per wallet; topic/wildcard scopes are live-only.
	lookback := min(max(req.Lookback, 0), m.maxAge)
	if req.WalletID != "" && lookback > 0 {
		replay, err := m.store.Read(ctx, req.WalletID, lookback)
		if err != nil {
			m.logger.Warn("REPLAY_READ_FAILED", "wallet_id", req.WalletID, "err", err)
		}
		for _, ev := range replay {
			if req.Topic == "" || ev.Topic == req.Topic {
				s.replay = append(s.replay, ev)
			}
		}
	}

	seen, err := lru.New[string, struct{}](max(len(s.replay)+m.queueSize, 128))
	if err != nil {
		m.hub.Unregister(key, sub.ID())
		return nil, err
	}
	s.seen = seen

	// 3. [LIFETIME]
	if req.Duration > 0 {
		s.timer = time.AfterFunc(req.Duration, s.expire)
	}

	m.logger.Debug("STREAM_OPENED", "key", key.String(), "sub_id", sub.ID(), "replayed", len(s.replay))
	return s, nil
}

// Stream is a lazy, finite, non-restartable sequence: replayed events first, then live ones.
// It is owned by the goroutine that opened it.
type Stream struct {
	sub    registry.Subscription
	hub    registry.Hubber
	replay []*model.Event
	seen   *lru.Cache[string, struct{}]

	timer      *time.Timer
	expired    chan struct{}
	expireOnce sync.Once
	closeOnce  sync.Once
}

func (s *Stream) Key() model.SubscriptionKey { return s.sub.Key() }

func (s *Stream) expire() {
	s.expireOnce.Do(func() { close(s.expired) })
}

// Next blocks for the next event. It returns ErrStreamClosed once the stream was closed
// or its duration elapsed, and ctx.Err() when ctx is done.
func (s *Stream) Next(ctx context.Context) (*model.Event, error) {
	if ev, ok := s.popReplay(); ok {
		return ev, nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.expired:
			return nil, ErrStreamClosed
		case ev, ok := <-s.sub.Recv():
			if !ok {
				return nil, ErrStreamClosed
			}
			if s.markSeen(ev) {
				return ev, nil
			}
		}
	}
}

// Batch returns every replayed event at once when any remain. Otherwise it blocks for one
// live event and then keeps collecting whatever arrives within window.
func (s *Stream) Batch(ctx context.Context, window time.Duration) ([]*model.Event, error) {
	if len(s.replay) > 0 {
		var batch []*model.Event
		for {
			ev, ok := s.popReplay()
			if !ok {
				return batch, nil
			}
			batch = append(batch, ev)
		}
	}

	first, err := s.Next(ctx)
	if err != nil {
		return nil, err
	}
	batch := []*model.Event{first}

	var deadline <-chan time.Time
	if window > 0 {
		t := time.NewTimer(window)
		defer t.Stop()
		deadline = t.C
	}
	for {
		if window <= 0 {
			// Drain only what is already queued.
			select {
			case ev, ok := <-s.sub.Recv():
				if !ok {
					return batch, nil
				}
				if s.markSeen(ev) {
					batch = append(batch, ev)
				}
				continue
			default:
				return batch, nil
			}
		}
		select {
		case <-ctx.Done():
			return batch, nil
		case <-s.expired:
			return batch, nil
		case <-deadline:
			return batch, nil
		case ev, ok := <-s.sub.Recv():
			if !ok {
				return batch, nil
			}
			if s.markSeen(ev) {
				batch = append(batch, ev)
			}
		}
	}
}

func (s *Stream) popReplay() (*model.Event, bool) {
	for len(s.replay) > 0 {
		ev := s.replay[0]
		s.replay[0] = nil
		s.replay = s.replay[1:]
		if s.markSeen(ev) {
			return ev, true
		}
	}
	return nil, false
}

// markSeen reports whether ev is new to this stream.
func (s *Stream) markSeen(ev *model.Event) bool {
	if s.seen.Contains(ev.ID) {
		return false
	}
	s.seen.Add(ev.ID, struct{}{})
	return true
}

// Dropped is the number of events this stream lost to queue overflow.
func (s *Stream) Dropped() uint64 { return s.sub.Dropped() }

// Close deregisters the subscription. It is idempotent and must be deferred by the opener.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.expire()
		s.hub.Unregister(s.sub.Key(), s.sub.ID())
	})
}
