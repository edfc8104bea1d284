package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

// Interface guard
var _ Subscription = (*subscription)(nil)

// [SUBSCRIPTION] THE INTERFACE FOR EXTERNAL LAYERS (STREAMS/HANDLERS)
// The hub only keeps a lookup reference; the connection that opened it owns its lifetime.
type Subscription interface {
	ID() uuid.UUID
	Key() model.SubscriptionKey
	CreatedAt() time.Time
	Send(ev *model.Event) bool // Non-blocking; drops the oldest queued event when full
	Recv() <-chan *model.Event
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate and release resources
}

// [SUBSCRIPTION] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type subscription struct {
	id        uuid.UUID
	key       model.SubscriptionKey
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// mu serializes Send against Close so a closed queue is never written to.
	mu     sync.Mutex
	closed bool
	sendCh chan *model.Event

	droppedCount atomic.Uint64
}

// NewSubscription creates a bounded queue scoped to key. It is cancelled together with ctx.
func NewSubscription(ctx context.Context, key model.SubscriptionKey, bufferSize int) Subscription {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	return &subscription{
		id:        uuid.New(),
		key:       key,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan *model.Event, bufferSize),
	}
}

func (s *subscription) ID() uuid.UUID              { return s.id }
func (s *subscription) Key() model.SubscriptionKey { return s.key }
func (s *subscription) CreatedAt() time.Time       { return s.createdAt }
func (s *subscription) Recv() <-chan *model.Event  { return s.sendCh }
func (s *subscription) Done() <-chan struct{}      { return s.ctx.Done() }
func (s *subscription) Dropped() uint64            { return s.droppedCount.Load() }

// Send enqueues ev without ever blocking the caller. On overflow the oldest queued
// event is evicted to make room: a stalled reader loses history, not the newest state.
func (s *subscription) Send(ev *model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ctx.Err() != nil {
		return false
	}

	select {
	case s.sendCh <- ev:
		return true
	default:
	}

	// [BACKPRESSURE] Queue saturated, evict the head.
	select {
	case <-s.sendCh:
		s.droppedCount.Add(1)
	default:
	}

	select {
	case s.sendCh <- ev:
		return true
	default:
		s.droppedCount.Add(1)
		return false
	}
}

// Close cancels the subscription and closes its queue. Safe to call more than once.
func (s *subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	// 1. [SIGNAL_ABORT] Wake up every reader selecting on Done().
	s.cancelFn()

	// 2. [UPSTREAM_NOTIFY] Readers ranging over Recv() observe !ok.
	close(s.sendCh)
}
