package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the envelope used to persist an event and to carry it over the bus.
// Unlike the wire JSON it keeps the server-side identity and ingestion time.
type Record struct {
	ID         string          `json:"id"`
	ReceivedAt int64           `json:"received_at"` // unix micro
	Topic      Topic           `json:"topic"`
	WalletID   string          `json:"wallet_id"`
	Origin     string          `json:"origin"`
	GroupID    string          `json:"group_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// EncodeRecord serializes ev into its persistent envelope.
func EncodeRecord(ev *Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(&Record{
		ID:         ev.ID,
		ReceivedAt: ev.ReceivedAt.UnixMicro(),
		Topic:      ev.Topic,
		WalletID:   ev.WalletID,
		Origin:     ev.Origin,
		GroupID:    ev.GroupID,
		Payload:    payload,
	})
}

// DecodeRecord rebuilds an event from its persistent envelope.
func DecodeRecord(data []byte) (*Event, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if !rec.Topic.Valid() {
		return nil, fmt.Errorf("decode record: unknown topic %q", rec.Topic)
	}
	payload, err := DecodePayload(rec.Topic, rec.Payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         rec.ID,
		ReceivedAt: time.UnixMicro(rec.ReceivedAt),
		Topic:      rec.Topic,
		WalletID:   rec.WalletID,
		Origin:     rec.Origin,
		GroupID:    rec.GroupID,
		Payload:    payload,
	}, nil
}
