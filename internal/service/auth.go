package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

const (
	APIKeyHeader    = "x-api-key"
	tenantKeyPrefix = "tenant."
)

// Auther resolves the wallet scope of an HTTP caller.
type Auther interface {
	Inspect(r *http.Request) (*model.AuthScope, error)
}

// APIKeyAuther accepts the administrative key verbatim and tenant keys of the form
// "tenant.<wallet_id>.<hex hmac-sha256(secret, wallet_id)>".
// With neither an admin key nor a tenant secret configured, every caller is admin.
type APIKeyAuther struct {
	adminKey    string
	secret      []byte
	adminWallet string
}

func NewAPIKeyAuther(adminKey, tenantSecret, adminWallet string) *APIKeyAuther {
	return &APIKeyAuther{
		adminKey:    adminKey,
		secret:      []byte(tenantSecret),
		adminWallet: adminWallet,
	}
}

// Disabled reports whether authentication is switched off.
func (a *APIKeyAuther) Disabled() bool {
	return a.adminKey == "" && len(a.secret) == 0
}

func (a *APIKeyAuther) Inspect(r *http.Request) (*model.AuthScope, error) {
	if a.Disabled() {
		return &model.AuthScope{WalletID: a.adminWallet, Admin: true}, nil
	}

	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		return nil, ErrUnauthorized
	}

	if a.adminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.adminKey)) == 1 {
		return &model.AuthScope{WalletID: a.adminWallet, Admin: true}, nil
	}

	if len(a.secret) > 0 && strings.HasPrefix(key, tenantKeyPrefix) {
		walletID, sig, ok := strings.Cut(strings.TrimPrefix(key, tenantKeyPrefix), ".")
		if ok && walletID != "" && hmac.Equal([]byte(sig), []byte(SignTenantKey(a.secret, walletID))) {
			return &model.AuthScope{WalletID: walletID}, nil
		}
	}
	return nil, ErrUnauthorized
}

// SignTenantKey returns the signature part of a tenant key.
func SignTenantKey(secret []byte, walletID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(walletID))
	return hex.EncodeToString(mac.Sum(nil))
}

// TenantKey builds a full tenant API key for walletID.
func TenantKey(secret []byte, walletID string) string {
	return tenantKeyPrefix + walletID + "." + SignTenantKey(secret, walletID)
}
