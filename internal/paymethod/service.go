package paymethod

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service manages a user's stored payment instruments.
type Service struct {
	repo Repository
}

// NewService builds a payment method service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validType(t string) bool {
	switch t {
	case TypeCard, TypePayPal, TypeBinancePay, TypeBank:
		return true
	}
	return false
}

// AddInput captures a new payment instrument.
type AddInput struct {
	UserID    string
	Type      string
	Label     string
	Token     string
	Last4     string
	IsDefault bool
}

// Add stores a payment method. The first method a user adds becomes the
// default; marking a later one default clears the previous flag.
func (s *Service) Add(ctx context.Context, in AddInput) (Method, error) {
	if !validType(in.Type) {
		return Method{}, ErrUnknownType
	}

	existing, err := s.repo.ListByUser(ctx, in.UserID)
	if err != nil {
		return Method{}, err
	}

	isDefault := in.IsDefault || len(existing) == 0
	if isDefault && len(existing) > 0 {
		if err := s.repo.ClearDefault(ctx, in.UserID); err != nil {
			return Method{}, err
		}
	}

	now := time.Now().UTC()
	m := Method{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Label:     in.Label,
		Token:     in.Token,
		Last4:     in.Last4,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Method{}, err
	}
	return m, nil
}

// List returns the user's payment methods, oldest first.
func (s *Service) List(ctx context.Context, userID string) ([]Method, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get fetches a payment method owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Method, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Method{}, err
	}
	if m.UserID != userID {
		return Method{}, ErrNotFound
	}
	return m, nil
}

// UpdateInput captures the editable fields of a payment method.
type UpdateInput struct {
	Label      *string
	SetDefault bool
}

// Update edits a payment method's label and default flag.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Method, error) {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return Method{}, err
	}

	if in.Label != nil {
		m.Label = *in.Label
	}
	if in.SetDefault && !m.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return Method{}, err
		}
		m.IsDefault = true
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return Method{}, err
	}
	return s.repo.Get(ctx, id)
}

// Remove deletes a payment method. The only remaining method cannot be
// removed; deleting the default promotes the oldest survivor.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	methods, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(methods) <= 1 {
		return ErrLastMethod
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if m.IsDefault {
		for _, candidate := range methods {
			if candidate.ID == id {
				continue
			}
			candidate.IsDefault = true
			return s.repo.Update(ctx, candidate)
		}
	}
	return nil
}
