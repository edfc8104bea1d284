// Package store holds the replay buffer: a per-wallet, age-bounded log of canonical events.
package store

import (
	"context"
	"time"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

// EventStore persists a short replay window per wallet.
//
// Append never enforces a bound at write time; Read excludes every entry older than
// maxAge, whether or not it has been physically evicted yet.
type EventStore interface {
	Append(ctx context.Context, walletID string, ev *model.Event) error
	Read(ctx context.Context, walletID string, maxAge time.Duration) ([]*model.Event, error)
	Close() error
}

// Clock returns the current time. Overridden in tests to age entries.
type Clock func() time.Time

// within reports whether an entry received at ts is still inside the replay window.
func within(now, ts time.Time, maxAge time.Duration) bool {
	return now.Sub(ts) <= maxAge
}
