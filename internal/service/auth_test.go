package service

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyAutherDisabled(t *testing.T) {
	a := NewAPIKeyAuther("", "", "admin")
	require.True(t, a.Disabled())

	scope, err := a.Inspect(httptest.NewRequest("GET", "/sse/w1", nil))
	require.NoError(t, err)
	assert.True(t, scope.Admin)
	assert.Equal(t, "admin", scope.WalletID)
}

func TestAPIKeyAutherScopes(t *testing.T) {
	a := NewAPIKeyAuther("root-key", "s3cret", "admin")
	require.False(t, a.Disabled())

	cases := []struct {
		name    string
		key     string
		wantErr bool
		admin   bool
		wallet  string
	}{
		{name: "admin", key: "root-key", admin: true, wallet: "admin"},
		{name: "tenant", key: TenantKey([]byte("s3cret"), "w1"), wallet: "w1"},
		{name: "missing", key: "", wantErr: true},
		{name: "wrong admin", key: "root-key2", wantErr: true},
		{name: "foreign signature", key: TenantKey([]byte("other"), "w1"), wantErr: true},
		{name: "signature for another wallet", key: "tenant.w2." + SignTenantKey([]byte("s3cret"), "w1"), wantErr: true},
		{name: "no wallet", key: "tenant..abc", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/sse/w1", nil)
			if tc.key != "" {
				r.Header.Set(APIKeyHeader, tc.key)
			}
			scope, err := a.Inspect(r)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				assert.Nil(t, scope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.admin, scope.Admin)
			assert.Equal(t, tc.wallet, scope.WalletID)
		})
	}
}

func TestAPIKeyAutherAdminOnly(t *testing.T) {
	a := NewAPIKeyAuther("root-key", "", "admin")

	r := httptest.NewRequest("GET", "/sse/w1", nil)
	r.Header.Set(APIKeyHeader, "tenant.w1.deadbeef")
	_, err := a.Inspect(r)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
