// Package listener is the client side of the SSE delivery endpoints. Workflow code uses
// it to block until a tenant's exchange reaches a given state.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiKeyHeader = "x-api-key"

var errDeadline = errors.New("listener deadline")

// Event is a canonical event as delivered on the wire.
type Event struct {
	WalletID string         `json:"wallet_id"`
	Topic    string         `json:"topic"`
	Origin   string         `json:"origin"`
	GroupID  string         `json:"group_id,omitempty"`
	Payload  map[string]any `json:"payload"`
}

// State returns payload["state"], or "".
func (e *Event) State() string {
	s, _ := e.Payload["state"].(string)
	return s
}

// TimeoutError reports that no matching event arrived in time.
type TimeoutError struct {
	WalletID     string
	Topic        string
	Field        string
	FieldID      string
	DesiredState string
	Timeout      time.Duration
}

func (e *TimeoutError) Error() string {
	target := e.DesiredState
	if e.Field != "" {
		target = fmt.Sprintf("%s=%s state=%s", e.Field, e.FieldID, e.DesiredState)
	}
	return fmt.Sprintf("listener: wallet %s topic %s: no event %s within %s", e.WalletID, e.Topic, target, e.Timeout)
}

type Listener struct {
	baseURL  string
	walletID string
	topic    string

	client   *http.Client
	apiKey   string
	lookback time.Duration
	logger   *slog.Logger
}

type Option func(*Listener)

func WithHTTPClient(c *http.Client) Option { return func(l *Listener) { l.client = c } }

// WithAPIKey sets the x-api-key credential sent on every request.
func WithAPIKey(key string) Option { return func(l *Listener) { l.apiKey = key } }

// WithLookback sets the replay depth requested from the server. Negative leaves the
// server default in place.
func WithLookback(d time.Duration) Option { return func(l *Listener) { l.lookback = d } }

func WithLogger(logger *slog.Logger) Option { return func(l *Listener) { l.logger = logger } }

// New returns a listener bound to one wallet and topic.
func New(baseURL, walletID, topic string, opts ...Option) *Listener {
	l := &Listener{
		baseURL:  strings.TrimRight(baseURL, "/"),
		walletID: walletID,
		topic:    topic,
		client:   http.DefaultClient,
		lookback: -1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WaitForState blocks until an event of the listener's wallet and topic reaches desiredState.
func (l *Listener) WaitForState(ctx context.Context, desiredState string, timeout time.Duration) (*Event, error) {
	return l.wait(ctx, &TimeoutError{
		WalletID:     l.walletID,
		Topic:        l.topic,
		DesiredState: desiredState,
		Timeout:      timeout,
	}, desiredState)
}

// WaitForField additionally requires payload[field] == fieldID.
func (l *Listener) WaitForField(ctx context.Context, field, fieldID, desiredState string, timeout time.Duration) (*Event, error) {
	return l.wait(ctx, &TimeoutError{
		WalletID:     l.walletID,
		Topic:        l.topic,
		Field:        field,
		FieldID:      fieldID,
		DesiredState: desiredState,
		Timeout:      timeout,
	}, field, fieldID, desiredState)
}

func (l *Listener) wait(ctx context.Context, terr *TimeoutError, segments ...string) (*Event, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, terr.Timeout, errDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.streamURL(segments...), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if l.apiKey != "" {
		req.Header.Set(apiKeyHeader, l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(context.Cause(ctx), errDeadline) {
			return nil, terr
		}
		return nil, fmt.Errorf("listener: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("listener: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	scanner := newSSEScanner(resp.Body)
	for scanner.Next() {
		var ev Event
		if err := json.Unmarshal([]byte(scanner.Data()), &ev); err != nil {
			l.logger.Warn("listener: undecodable event", "err", err)
			continue
		}
		// The server only emits events that match the path, and closes after the first.
		return &ev, nil
	}

	if errors.Is(context.Cause(ctx), errDeadline) {
		return nil, terr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("listener: reading stream: %w", err)
	}
	return nil, fmt.Errorf("listener: stream for wallet %s ended without a match", l.walletID)
}

func (l *Listener) streamURL(segments ...string) string {
	parts := []string{l.baseURL, "sse", url.PathEscape(l.walletID), url.PathEscape(l.topic)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	u := strings.Join(parts, "/")
	if l.lookback >= 0 {
		u += "?lookback_time=" + strconv.FormatFloat(l.lookback.Seconds(), 'f', -1, 64)
	}
	return u
}
