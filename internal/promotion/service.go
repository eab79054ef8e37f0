package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service evaluates and redeems promotion codes.
type Service struct {
	repo Repository
}

// NewService builds a promotion service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures the data required to create a promotion.
type CreateInput struct {
	BusinessID  string
	Code        string
	Name        string
	Type        string
	Value       int64
	MinPurchase int64
	MaxDiscount int64
	UsageLimit  int
	StartDate   time.Time
	EndDate     time.Time
}

// Create validates and stores a new promotion.
func (s *Service) Create(ctx context.Context, input CreateInput) (Promotion, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return Promotion{}, fmt.Errorf("promotion code is required")
	}
	switch input.Type {
	case TypePercentage:
		if input.Value <= 0 || input.Value > 100 {
			return Promotion{}, fmt.Errorf("percentage value must be in (0,100]")
		}
	case TypeFixedAmount:
		if input.Value <= 0 {
			return Promotion{}, fmt.Errorf("fixed amount must be positive")
		}
	case TypeFreeDelivery:
		// value unused
	default:
		return Promotion{}, fmt.Errorf("unknown promotion type %q", input.Type)
	}
	if !input.EndDate.After(input.StartDate) {
		return Promotion{}, fmt.Errorf("end date must be after start date")
	}

	p := Promotion{
		ID:          uuid.NewString(),
		BusinessID:  input.BusinessID,
		Code:        code,
		Name:        input.Name,
		Type:        input.Type,
		Value:       input.Value,
		MinPurchase: input.MinPurchase,
		MaxDiscount: input.MaxDiscount,
		UsageLimit:  input.UsageLimit,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

// Get fetches a promotion by id.
func (s *Service) Get(ctx context.Context, id string) (Promotion, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns promotions currently inside their active window.
func (s *Service) ListActive(ctx context.Context, now time.Time) ([]Promotion, error) {
	return s.repo.ListActive(ctx, now)
}

// Evaluate computes the discount a code yields for the given purchase amount.
// It never mutates usage counters; redemption happens separately once the
// associated payment completes.
func (s *Service) Evaluate(ctx context.Context, code string, amount int64, now time.Time) (Quote, error) {
	p, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Quote{}, ErrInvalidOrExpiredCode
		}
		return Quote{}, err
	}
	if !p.ActiveAt(now) {
		return Quote{}, ErrInvalidOrExpiredCode
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return Quote{}, ErrUsageLimitExceeded
	}
	if p.MinPurchase > 0 && amount < p.MinPurchase {
		return Quote{}, ErrMinimumNotMet
	}

	quote := Quote{Code: p.Code, FinalAmount: amount}
	switch p.Type {
	case TypePercentage:
		discount := amount * p.Value / 100
		if p.MaxDiscount > 0 && discount > p.MaxDiscount {
			discount = p.MaxDiscount
		}
		quote.Discount = discount
	case TypeFixedAmount:
		discount := p.Value
		if discount > amount {
			discount = amount
		}
		quote.Discount = discount
	case TypeFreeDelivery:
		quote.FreeDelivery = true
	}
	quote.FinalAmount = amount - quote.Discount
	return quote, nil
}

// Redeem records one use of the code. The increment is atomic and monotonic;
// it fails rather than exceed the usage limit.
func (s *Service) Redeem(ctx context.Context, code string) error {
	return s.repo.IncrementUsage(ctx, strings.ToUpper(strings.TrimSpace(code)))
}
