package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the provider could not be reached or answered with
// a transport-level failure. Callers may retry the whole operation; the
// ledger is never touched on this path.
var ErrUnavailable = errors.New("payment provider unavailable")

// Status is the provider-side state of an order.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
	StatusExpired Status = "EXPIRED"
)

// OrderRequest captures what the provider needs to open an order. Amount is
// in integer minor units of Currency.
type OrderRequest struct {
	Amount      int64
	Currency    string
	Description string
	ReturnURL   string
}

// Order is the provider's handle for an opened payment.
type Order struct {
	ProviderID  string
	ApprovalURL string
	ExpiresAt   time.Time
}

// Refund is the provider's confirmation of a reversal.
type Refund struct {
	RefundID string
	Amount   int64
}

// Provider is the narrow contract the settlement core depends on. Concrete
// clients (PayPal, Binance Pay) and the static approver implement it.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	GetStatus(ctx context.Context, providerID string) (Status, error)
	Refund(ctx context.Context, providerID string, amount int64) (Refund, error)
}
