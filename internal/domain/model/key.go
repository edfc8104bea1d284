package model

// SubscriptionKey scopes a subscription. Empty fields act as wildcards, so the zero
// value matches every event. The key only drives broadcast, never persistence.
type SubscriptionKey struct {
	WalletID string
	Topic    Topic
}

// Wildcard is the key matching all events.
var Wildcard = SubscriptionKey{}

func (k SubscriptionKey) IsWildcard() bool { return k == Wildcard }

func (k SubscriptionKey) String() string {
	switch {
	case k.IsWildcard():
		return "*"
	case k.Topic == "":
		return "wallet:" + k.WalletID
	case k.WalletID == "":
		return "topic:" + string(k.Topic)
	default:
		return "topic:" + string(k.Topic) + "/wallet:" + k.WalletID
	}
}

// KeysFor returns the four keys an event is broadcast under.
func KeysFor(ev *Event) [4]SubscriptionKey {
	return [4]SubscriptionKey{
		{WalletID: ev.WalletID},
		{Topic: ev.Topic},
		{WalletID: ev.WalletID, Topic: ev.Topic},
		Wildcard,
	}
}
