package payments

import (
	"context"
	"errors"
	"time"
)

const (
	// PaymentStatusPending mirrors a pending ledger transaction.
	PaymentStatusPending = "pending"
	// PaymentStatusCompleted mirrors a completed ledger transaction.
	PaymentStatusCompleted = "completed"
	// PaymentStatusFailed mirrors a failed ledger transaction.
	PaymentStatusFailed = "failed"
	// PaymentStatusRefunded marks a completed payment that was later reversed.
	PaymentStatusRefunded = "refunded"
)

// ProviderWallet marks internally settled payments with no external order.
const ProviderWallet = "wallet"

var (
	// ErrUnknownProvider indicates a reconciliation referenced a provider
	// transaction id this ledger has never seen.
	ErrUnknownProvider = errors.New("unknown provider transaction")

	// ErrNotRefundable indicates the payment is not in a refundable state.
	ErrNotRefundable = errors.New("payment is not refundable")

	// ErrPaymentNotFound indicates no payment matches the lookup.
	ErrPaymentNotFound = errors.New("payment not found")
)

// Payment is the external-provider-facing record tied 1:1 to a ledger
// transaction. Its status mirrors the transaction's under a single commit of
// the coordinator or reconciler.
type Payment struct {
	ID            string
	TransactionID string
	WalletID      string
	MethodID      string
	Provider      string
	ProviderTxID  string
	Status        string
	Amount        int64
	Currency      string
	PromotionCode string
	ApprovalURL   string
	RefundID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository persists payment records.
type Repository interface {
	Create(ctx context.Context, p Payment) error
	Get(ctx context.Context, id string) (Payment, error)
	GetByTransaction(ctx context.Context, txID string) (Payment, error)
	GetByProviderTx(ctx context.Context, providerTxID string) (Payment, error)
	Update(ctx context.Context, p Payment) error
}
