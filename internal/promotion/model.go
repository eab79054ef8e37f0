package promotion

import (
	"errors"
	"time"
)

const (
	// TypePercentage discounts a percentage of the purchase amount.
	TypePercentage = "percentage"
	// TypeFixedAmount discounts a fixed amount, clamped to the purchase.
	TypeFixedAmount = "fixed_amount"
	// TypeFreeDelivery waives the delivery fee line; the principal amount is untouched.
	TypeFreeDelivery = "free_delivery"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	// ErrInvalidOrExpiredCode covers unknown, inactive and out-of-window codes.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired promotion code")

	// ErrUsageLimitExceeded indicates the redemption cap was reached.
	ErrUsageLimitExceeded = errors.New("promotion usage limit exceeded")

	// ErrMinimumNotMet indicates the purchase is below the promotion's minimum.
	ErrMinimumNotMet = errors.New("minimum purchase amount not met")
)

// Promotion is a redeemable discount code with an active window and an
// optional usage cap. Monetary fields are integer minor units; Value is a
// whole percentage for TypePercentage.
type Promotion struct {
	ID          string
	BusinessID  string
	Code        string
	Name        string
	Type        string
	Value       int64
	MinPurchase int64 // 0 means no minimum
	MaxDiscount int64 // 0 means uncapped
	UsageLimit  int   // 0 means unlimited
	UsageCount  int
	StartDate   time.Time
	EndDate     time.Time
	Status      string
	CreatedAt   time.Time
}

// ActiveAt reports whether the promotion can be evaluated at the given time.
func (p Promotion) ActiveAt(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	return true
}

// Quote is the outcome of evaluating a code against a purchase amount.
type Quote struct {
	Code         string
	Discount     int64
	FinalAmount  int64
	FreeDelivery bool
}
