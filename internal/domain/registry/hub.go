package registry

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

// Hubber defines the gateway for subscription management and event routing.
type Hubber interface {
	Broadcast(ev *model.Event) int
	Register(sub Subscription)
	Unregister(key model.SubscriptionKey, subID uuid.UUID)
	Len() int
	Stats() model.HubStats
	Shutdown()
}

type counters struct {
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

type hubConfig struct {
	evictionInterval time.Duration
	idleTimeout      time.Duration
	mailboxSize      int
}

// Hub implements the [BROADCAST_ROUTER] using one Cell per subscription key.
type Hub struct {
	config hubConfig
	logger *slog.Logger

	// mu guards cells. Broadcast only needs the read lock because Cell.Push never blocks.
	mu    sync.RWMutex
	cells map[model.SubscriptionKey]*Cell

	counters  counters
	startedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			evictionInterval: time.Minute,
			idleTimeout:      5 * time.Minute,
			mailboxSize:      1024,
		},
		logger:    slog.Default(),
		cells:     make(map[model.SubscriptionKey]*Cell),
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.config.evictionInterval > 0 {
		go h.janitor()
	}
	return h
}

// Broadcast routes ev to the cells of all four keys derived from it.
// Returns the number of cells that accepted the event.
func (h *Hub) Broadcast(ev *model.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	accepted := 0
	for _, key := range model.KeysFor(ev) {
		if cell, ok := h.cells[key]; ok && cell.Push(ev) {
			accepted++
		}
	}
	return accepted
}

// Register ensures [IDEMPOTENT] cell creation and attaches the subscription.
func (h *Hub) Register(sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := sub.Key()
	cell, ok := h.cells[key]
	if !ok {
		// [LAZY_INIT] Create cell only when the first subscription arrives.
		cell = NewCell(key, h.config.mailboxSize, &h.counters)
		h.cells[key] = cell
	}
	cell.Attach(sub)
}

// Unregister detaches and closes the subscription. Cells left empty are reclaimed by the
// janitor after the idle timeout, or immediately when eviction is disabled.
func (h *Hub) Unregister(key model.SubscriptionKey, subID uuid.UUID) {
	h.mu.Lock()
	cell, ok := h.cells[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	sub, found := cell.Detach(subID)
	if h.config.evictionInterval <= 0 && cell.Len() == 0 {
		cell.Stop()
		delete(h.cells, key)
	}
	h.mu.Unlock()

	if found {
		sub.Close()
	}
}

// Len returns the number of registered subscriptions across all keys.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, cell := range h.cells {
		n += cell.Len()
	}
	return n
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := model.HubStats{
		TotalKeys: len(h.cells),
		Delivered: h.counters.delivered.Load(),
		Dropped:   h.counters.dropped.Load(),
		Uptime:    time.Since(h.startedAt),
	}
	for key, cell := range h.cells {
		n := cell.Len()
		stats.TotalSubscriptions += n
		stats.Keys = append(stats.Keys, model.KeyStats{Key: key.String(), Subscriptions: n})
	}
	sort.Slice(stats.Keys, func(i, j int) bool { return stats.Keys[i].Key < stats.Keys[j].Key })
	return stats
}

// Shutdown stops every cell goroutine and closes all remaining subscriptions.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	var orphans []Subscription
	for key, cell := range h.cells {
		orphans = append(orphans, cell.DetachAll()...)
		cell.Stop()
		delete(h.cells, key)
	}
	h.mu.Unlock()

	for _, sub := range orphans {
		sub.Close()
	}
}

// janitor reclaims cells that stayed empty for longer than the idle timeout.
func (h *Hub) janitor() {
	ticker := time.NewTicker(h.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.evictIdle()
		}
	}
}

func (h *Hub) evictIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := 0
	for key, cell := range h.cells {
		if cell.IsIdle(h.config.idleTimeout) {
			cell.Stop()
			delete(h.cells, key)
			evicted++
		}
	}
	if evicted > 0 {
		h.logger.Debug("HUB_CELLS_EVICTED", "count", evicted, "remaining", len(h.cells))
	}
}
