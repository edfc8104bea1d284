package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTopicUnmapped    = errors.New("agent topic has no canonical mapping")
	ErrNoTransformer    = errors.New("no payload transformer for topic")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrStreamClosed     = errors.New("event stream closed")
	ErrWaitTimeout      = errors.New("timed out waiting for event")
	ErrUnauthorized     = errors.New("unauthorized")
)

// TimeoutError reports that no event matching Filter reached WalletID within Timeout.
type TimeoutError struct {
	WalletID string
	Filter   Filter
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: wallet=%s %s after %s", ErrWaitTimeout, e.WalletID, e.Filter, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrWaitTimeout }
