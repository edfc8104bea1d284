package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/webitel/webhooks-service/internal/domain/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errWaitDeadline = errors.New("wait deadline")

// Waiter is the synchronization primitive multi-step workflows block on.
type Waiter struct {
	streams       Streamer
	logger        *slog.Logger
	lookback      time.Duration
	reorderWindow time.Duration
}

func NewWaiter(streams Streamer, logger *slog.Logger, lookback, reorderWindow time.Duration) *Waiter {
	return &Waiter{
		streams:       streams,
		logger:        logger,
		lookback:      lookback,
		reorderWindow: reorderWindow,
	}
}

// WaitForState blocks until an event of walletID/topic reaches desiredState.
func (w *Waiter) WaitForState(ctx context.Context, walletID string, topic model.Topic, desiredState string, timeout time.Duration) (*model.Event, error) {
	return w.Wait(ctx, walletID, Filter{Topic: topic, DesiredState: desiredState}, timeout)
}

// WaitForField additionally requires payload[field] == value, which disambiguates
// concurrent exchanges on the same wallet and topic.
func (w *Waiter) WaitForField(ctx context.Context, walletID string, topic model.Topic, field, value, desiredState string, timeout time.Duration) (*model.Event, error) {
	return w.Wait(ctx, walletID, Filter{Topic: topic, Field: field, FieldValue: value, DesiredState: desiredState}, timeout)
}

// Wait returns the first event of walletID matching f. On timeout it returns a
// *TimeoutError; the subscription is released on every exit path.
func (w *Waiter) Wait(ctx context.Context, walletID string, f Filter, timeout time.Duration) (*model.Event, error) {
	ctx, span := tracer.Start(ctx, "webhook.wait")
	defer span.End()
	span.SetAttributes(attribute.String("wait.wallet_id", walletID), attribute.String("wait.filter", f.String()))

	ctx, cancel := context.WithTimeoutCause(ctx, timeout, errWaitDeadline)
	defer cancel()

	stream, err := w.streams.Open(ctx, StreamRequest{WalletID: walletID, Topic: f.Topic, Lookback: w.lookback})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	matcher := NewMatcher(f)
	window := time.Duration(0)
	if matcher.TracksEndorsements() {
		window = w.reorderWindow
	}

	for {
		batch, err := stream.Batch(ctx, window)
		if err != nil {
			if errors.Is(context.Cause(ctx), errWaitDeadline) {
				terr := &TimeoutError{WalletID: walletID, Filter: f, Timeout: timeout}
				span.SetStatus(codes.Error, "timeout")
				w.logger.Debug("WAIT_TIMEOUT", "wallet_id", walletID, "filter", f.String(), "timeout", timeout)
				return nil, terr
			}
			return nil, err
		}
		if ev := matcher.First(batch); ev != nil {
			return ev, nil
		}
	}
}
