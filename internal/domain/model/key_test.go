package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysFor(t *testing.T) {
	ev := NewEvent(TopicConnections, "w1", "tenant", "", &Connection{ConnectionID: "c1"})

	keys := KeysFor(ev)

	assert.Equal(t, SubscriptionKey{WalletID: "w1"}, keys[0])
	assert.Equal(t, SubscriptionKey{Topic: TopicConnections}, keys[1])
	assert.Equal(t, SubscriptionKey{WalletID: "w1", Topic: TopicConnections}, keys[2])
	assert.True(t, keys[3].IsWildcard())
}

func TestSubscriptionKeyString(t *testing.T) {
	assert.Equal(t, "*", Wildcard.String())
	assert.Equal(t, "wallet:w1", SubscriptionKey{WalletID: "w1"}.String())
	assert.Equal(t, "topic:proofs", SubscriptionKey{Topic: TopicProofs}.String())
	assert.Equal(t, "topic:proofs/wallet:w1", SubscriptionKey{WalletID: "w1", Topic: TopicProofs}.String())
}

func TestAuthScopeCanAccess(t *testing.T) {
	admin := &AuthScope{WalletID: DefaultAdminWalletID, Admin: true}
	tenant := &AuthScope{WalletID: "wallet-a"}

	assert.True(t, admin.CanAccess("wallet-a"))
	assert.True(t, admin.CanAccess(""))
	assert.True(t, tenant.CanAccess("wallet-a"))
	assert.False(t, tenant.CanAccess("wallet-b"))
	assert.False(t, tenant.CanAccess(""))

	var anonymous *AuthScope
	assert.False(t, anonymous.CanAccess("wallet-a"))
}

func TestRecordRoundTripKeepsIdentity(t *testing.T) {
	verified := true
	ev := NewEvent(TopicProofs, "w1", "tenant", "g1", &PresentationExchange{
		ProofID:         "v2-abc",
		ProtocolVersion: "v2",
		State:           "done",
		Verified:        &verified,
	})

	data, err := EncodeRecord(ev)
	require.NoError(t, err)

	got, err := DecodeRecord(data)
	require.NoError(t, err)

	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.ReceivedAt.UnixMicro(), got.ReceivedAt.UnixMicro())
	assert.Equal(t, ev.GroupID, got.GroupID)
	require.IsType(t, &PresentationExchange{}, got.Payload)
	assert.Equal(t, "v2-abc", got.Payload.(*PresentationExchange).ProofID)
	assert.Equal(t, "done", got.State())
}

func TestDecodeRecordRejectsUnknownTopic(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"id":"x","topic":"ping","payload":{}}`))
	assert.Error(t, err)
}

func TestEventFields(t *testing.T) {
	ev := NewEvent(TopicConnections, "w1", "tenant", "", &Connection{ConnectionID: "abc", State: "completed"})

	fields := ev.Fields()

	assert.Equal(t, "abc", fields["connection_id"])
	assert.Equal(t, "completed", fields["state"])
	_, hasAlias := fields["alias"]
	assert.False(t, hasAlias)
}
