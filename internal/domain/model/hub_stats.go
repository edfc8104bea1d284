package model

import "time"

type HubStats struct {
	TotalKeys          int           `json:"total_keys"`
	TotalSubscriptions int           `json:"total_subscriptions"`
	Delivered          uint64        `json:"delivered"`
	Dropped            uint64        `json:"dropped"`
	Uptime             time.Duration `json:"uptime"`
	Keys               []KeyStats    `json:"keys,omitempty"`
}

type KeyStats struct {
	Key           string `json:"key"`
	Subscriptions int    `json:"subscriptions"`
}
