package service

import (
	"fmt"
	"strings"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

// Endorsement states relevant to the ignore-list.
const (
	StateRequestReceived     = "request-received"
	StateTransactionAcked    = "transaction-acked"
	StateTransactionEndorsed = "transaction-endorsed"
)

const endorsementIDField = "transaction_id"

// Filter is a server-side predicate over canonical events. Zero fields match anything.
type Filter struct {
	Topic        model.Topic
	GroupID      string
	Field        string
	FieldValue   string
	DesiredState string
}

func (f Filter) Match(ev *model.Event) bool {
	if f.Topic != "" && ev.Topic != f.Topic {
		return false
	}
	if f.GroupID != "" && ev.GroupID != f.GroupID {
		return false
	}
	if f.Field != "" {
		v, ok := ev.Fields()[f.Field]
		if !ok || fmt.Sprint(v) != f.FieldValue {
			return false
		}
	}
	if f.DesiredState != "" && ev.State() != f.DesiredState {
		return false
	}
	return true
}

func (f Filter) String() string {
	var parts []string
	if f.Topic != "" {
		parts = append(parts, "topic="+string(f.Topic))
	}
	if f.GroupID != "" {
		parts = append(parts, "group_id="+f.GroupID)
	}
	if f.Field != "" {
		parts = append(parts, f.Field+"="+f.FieldValue)
	}
	if f.DesiredState != "" {
		parts = append(parts, "state="+f.DesiredState)
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

// Matcher applies a Filter across the events of one stream and keeps the endorsement
// ignore-list: while waiting for request-received on the shared endorsements topic, a
// transaction already seen acked or endorsed never matches again.
type Matcher struct {
	filter   Filter
	advanced map[string]struct{}
}

func NewMatcher(f Filter) *Matcher {
	return &Matcher{filter: f, advanced: make(map[string]struct{})}
}

// TracksEndorsements reports whether the ignore-list is in effect.
func (m *Matcher) TracksEndorsements() bool {
	return m.filter.Topic == model.TopicEndorsements && m.filter.DesiredState == StateRequestReceived
}

func (m *Matcher) observe(ev *model.Event) {
	if ev.Topic != model.TopicEndorsements {
		return
	}
	switch ev.State() {
	case StateTransactionAcked, StateTransactionEndorsed:
		if id := transactionID(ev); id != "" {
			m.advanced[id] = struct{}{}
		}
	}
}

func (m *Matcher) ignored(ev *model.Event) bool {
	if !m.TracksEndorsements() || ev.Topic != model.TopicEndorsements || ev.State() != StateRequestReceived {
		return false
	}
	_, ok := m.advanced[transactionID(ev)]
	return ok
}

// Filter returns the matching events of batch in order. Every event of the batch feeds
// the ignore-list before any is matched, so a stale request-received is recognized even
// when its acknowledgement sits later in the same batch.
func (m *Matcher) Filter(batch []*model.Event) []*model.Event {
	for _, ev := range batch {
		m.observe(ev)
	}
	var out []*model.Event
	for _, ev := range batch {
		if !m.ignored(ev) && m.filter.Match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// First returns the first match of batch, or nil.
func (m *Matcher) First(batch []*model.Event) *model.Event {
	if matches := m.Filter(batch); len(matches) > 0 {
		return matches[0]
	}
	return nil
}

func transactionID(ev *model.Event) string {
	if p, ok := ev.Payload.(*model.Endorsement); ok {
		return p.TransactionID
	}
	if v, ok := ev.Fields()[endorsementIDField].(string); ok {
		return v
	}
	return ""
}
