package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when a debit would take the wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided idempotency key was
	// already used on this wallet; the prior transaction is returned alongside
	// so callers can replay the original result.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrWalletNotFound indicates no balance is registered for the wallet.
	ErrWalletNotFound = errors.New("wallet not registered in ledger")

	// ErrTransactionNotFound indicates the transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionFinal indicates the transaction already reached a terminal
	// status and cannot transition again.
	ErrTransactionFinal = errors.New("transaction already settled")
)

const (
	// KindDeposit credits a wallet from an external source.
	KindDeposit = "deposit"
	// KindWithdrawal debits a wallet toward an external destination.
	KindWithdrawal = "withdrawal"
	// KindPayment debits a wallet for a marketplace purchase.
	KindPayment = "payment"
	// KindRefund reverses the effect of a prior completed transaction.
	KindRefund = "refund"
)

const (
	// StatusPending marks a transaction awaiting external settlement.
	StatusPending = "pending"
	// StatusCompleted marks a settled transaction whose delta is reflected in
	// the wallet balance.
	StatusCompleted = "completed"
	// StatusFailed marks a transaction that settled unsuccessfully; it never
	// touches the balance.
	StatusFailed = "failed"
)

// Transaction is a single signed balance-changing ledger entry. Amounts are
// integer minor units; a terminal transaction is immutable.
type Transaction struct {
	ID             string
	WalletID       string
	Amount         int64
	Kind           string
	Status         string
	IdempotencyKey string
	Description    string
	CreatedAt      time.Time
	SettledAt      time.Time
	ExpiresAt      time.Time
}

// Pending reports whether the transaction still awaits settlement.
func (t Transaction) Pending() bool { return t.Status == StatusPending }

// Expired reports whether a pending transaction outlived its settlement window.
func (t Transaction) Expired(now time.Time) bool {
	return t.Status == StatusPending && !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Input captures the data required to record a ledger entry.
type Input struct {
	WalletID       string
	Amount         int64
	Kind           string
	IdempotencyKey string
	Description    string
	ExpiresAt      time.Time
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// Every mutation is atomic: either the transaction row and the balance change
// land together, or neither does.
type Store interface {
	// Register guarantees a zero balance exists for the wallet.
	Register(ctx context.Context, walletID string) error

	// Balance returns the current balance, equal to the sum of completed deltas.
	Balance(ctx context.Context, walletID string) (int64, error)

	// Apply records a COMPLETED transaction and mutates the balance in one
	// unit of work. Replaying an idempotency key returns the prior transaction
	// with ErrDuplicateTransaction and performs no second mutation.
	Apply(ctx context.Context, in Input) (Transaction, error)

	// Begin records a PENDING transaction without touching the balance.
	// Idempotency keys are reserved at this point.
	Begin(ctx context.Context, in Input) (Transaction, error)

	// Complete transitions a PENDING transaction to COMPLETED and applies its
	// delta. A terminal transaction yields ErrTransactionFinal.
	Complete(ctx context.Context, txID string) (Transaction, error)

	// Fail transitions a PENDING transaction to FAILED without a balance
	// change. A terminal transaction yields ErrTransactionFinal.
	Fail(ctx context.Context, txID string) (Transaction, error)

	// Get fetches a transaction by id.
	Get(ctx context.Context, txID string) (Transaction, error)

	// FindByKey fetches the transaction holding the wallet's idempotency key.
	FindByKey(ctx context.Context, walletID, key string) (Transaction, error)

	// ListByWallet returns the wallet's transactions, newest first.
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)
}
