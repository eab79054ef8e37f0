package wallet

import "time"

const (
	// StatusActive allows balance mutations.
	StatusActive = "active"
	// StatusInactive blocks mutations; wallets are never deleted.
	StatusInactive = "inactive"
)

// Wallet represents a per-account stored-value balance backed by the ledger.
type Wallet struct {
	ID        string
	OwnerID   string
	Currency  string
	Status    string
	CreatedAt time.Time
}

// Active reports whether the wallet accepts balance mutations.
func (w Wallet) Active() bool { return w.Status == StatusActive }

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	Currency string
	AsOf     time.Time
}
