package paymethod

import (
	"context"
	"errors"
	"time"
)

const (
	TypeCard       = "card"
	TypePayPal     = "paypal"
	TypeBinancePay = "binance_pay"
	TypeBank       = "bank_account"
)

var (
	// ErrNotFound indicates no payment method matches the lookup.
	ErrNotFound = errors.New("payment method not found")

	// ErrUnknownType indicates an unsupported payment method type.
	ErrUnknownType = errors.New("unknown payment method type")

	// ErrLastMethod indicates the account's only payment method cannot be
	// removed.
	ErrLastMethod = errors.New("cannot remove the only payment method")
)

// Method is a stored payment instrument. Details holds only the provider
// token and display data; raw card numbers are never persisted.
type Method struct {
	ID        string
	UserID    string
	Type      string
	Label     string
	Token     string
	Last4     string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists payment methods.
type Repository interface {
	Create(ctx context.Context, m Method) error
	Get(ctx context.Context, id string) (Method, error)
	ListByUser(ctx context.Context, userID string) ([]Method, error)
	Update(ctx context.Context, m Method) error
	Delete(ctx context.Context, id string) error

	// ClearDefault unsets the default flag on all of the user's methods.
	ClearDefault(ctx context.Context, userID string) error
}
