package model

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is the canonical, immutable unit flowing through the store, the bus and the hub.
type Event struct {
	ID         string    `json:"-"`
	ReceivedAt time.Time `json:"-"`

	Topic    Topic   `json:"topic"`
	WalletID string  `json:"wallet_id"`
	Origin   string  `json:"origin"`
	GroupID  string  `json:"group_id,omitempty"`
	Payload  Payload `json:"payload"`

	fieldsOnce sync.Once
	fields     map[string]any

	// cached holds the transport-specific encoding, computed once per event
	// regardless of how many subscribers receive it.
	cached atomic.Value
}

// NewEvent stamps a fresh identity and ingestion time on a canonical event.
func NewEvent(topic Topic, walletID, origin, groupID string, payload Payload) *Event {
	return &Event{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now(),
		Topic:      topic,
		WalletID:   walletID,
		Origin:     origin,
		GroupID:    groupID,
		Payload:    payload,
	}
}

// State returns the normalized payload state, or "" when the payload has none.
func (e *Event) State() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.GetState()
}

// Fields is the generic string-keyed view of the payload used by caller-supplied filters.
func (e *Event) Fields() map[string]any {
	e.fieldsOnce.Do(func() {
		e.fields = map[string]any{}
		if e.Payload == nil {
			return
		}
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return
		}
		_ = json.Unmarshal(raw, &e.fields)
	})
	return e.fields
}

func (e *Event) GetCached() any     { return e.cached.Load() }
func (e *Event) SetCached(v any)    { e.cached.Store(v) }
func (e *Event) Age() time.Duration { return time.Since(e.ReceivedAt) }
