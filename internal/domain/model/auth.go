package model

// AuthScope is the wallet scope an authenticated caller acts in.
type AuthScope struct {
	WalletID string
	Admin    bool
}

// CanAccess reports whether the scope may observe events of walletID.
// An empty walletID means "any wallet" and is reserved for the administrative scope.
func (a *AuthScope) CanAccess(walletID string) bool {
	if a == nil {
		return false
	}
	if a.Admin {
		return true
	}
	return walletID != "" && walletID == a.WalletID
}
