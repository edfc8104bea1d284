package model

// RawWebhookEvent is a webhook callback exactly as an agent delivered it.
// It is built once per inbound request and never persisted.
type RawWebhookEvent struct {
	Origin     string
	AgentTopic string
	WalletID   string
	GroupID    string // optional tenant group, forwarded as-is
	Payload    map[string]any
}
