/*
Package registry implements the broadcast router of the event broker.

Key Architectural Concepts:
  - Cells: every subscription key in use (wallet, topic, topic+wallet or wildcard) is
    represented by an isolated Cell that owns all subscriptions registered under it.
  - Decoupling & Backpressure: a Cell has its own mailbox and goroutine, so publishing never
    waits on a subscriber. Full mailboxes and full subscription queues shed load instead.
  - Ordering: one goroutine per Cell drains a FIFO mailbox, so every subscription observes
    events in the order the hub received them.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

// Celler defines the internal API for key-scoped delivery units.
type Celler interface {
	Push(ev *model.Event) bool
	Attach(sub Subscription)
	Detach(subID uuid.UUID) (Subscription, bool)
	DetachAll() []Subscription
	Len() int
	IsIdle(timeout time.Duration) bool
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] for a single subscription key.
type Cell struct {
	key model.SubscriptionKey

	// [MAILBOX]
	// Buffered channel that decouples the hub from individual delivery.
	mailbox chan *model.Event

	// [SESSIONS]
	sessions map[uuid.UUID]Subscription

	// mu guards sessions and lastActivityAt. deliver holds the read lock while sending,
	// so Detach returning means no further Send reaches the detached subscription.
	mu sync.RWMutex

	counters *counters

	doneCh   chan struct{}
	stopOnce sync.Once

	lastActivityAt time.Time
}

func NewCell(key model.SubscriptionKey, bufferSize int, c *counters) *Cell {
	if c == nil {
		c = &counters{}
	}
	cell := &Cell{
		key:            key,
		mailbox:        make(chan *model.Event, bufferSize),
		sessions:       make(map[uuid.UUID]Subscription),
		counters:       c,
		doneCh:         make(chan struct{}),
		lastActivityAt: time.Now(),
	}
	go cell.loop()
	return cell
}

// IsIdle returns true if the cell has no subscriptions and stayed empty past timeout.
func (c *Cell) IsIdle(timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.sessions) == 0 && time.Since(c.lastActivityAt) > timeout
}

// Push hands ev to the cell goroutine. It never blocks; a full mailbox drops ev.
func (c *Cell) Push(ev *model.Event) bool {
	select {
	case <-c.doneCh:
		return false
	case c.mailbox <- ev:
		return true
	default:
		c.counters.dropped.Add(1)
		return false
	}
}

func (c *Cell) Attach(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now()
	c.sessions[sub.ID()] = sub
}

func (c *Cell) Detach(subID uuid.UUID) (Subscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.sessions[subID]
	delete(c.sessions, subID)
	c.lastActivityAt = time.Now()
	return sub, ok
}

func (c *Cell) DetachAll() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]Subscription, 0, len(c.sessions))
	for id, sub := range c.sessions {
		subs = append(subs, sub)
		delete(c.sessions, id)
	}
	return subs
}

func (c *Cell) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

func (c *Cell) deliver(ev *model.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sub := range c.sessions {
		if sub.Send(ev) {
			c.counters.delivered.Add(1)
		} else {
			c.counters.dropped.Add(1)
		}
	}
}

func (c *Cell) Stop() {
	c.stopOnce.Do(func() { close(c.doneCh) })
}
