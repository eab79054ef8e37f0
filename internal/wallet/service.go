package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/SantoDelgado/krizo-backend/internal/ledger"
)

// ErrInactive indicates the wallet was deactivated and refuses mutations.
var ErrInactive = errors.New("wallet is inactive")

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Store
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Store) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Create provisions a wallet and registers it with the ledger.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Wallet{}, err
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	wallet := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}

	// The wallet row must exist before the balance row references it.
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	if err := s.ledger.Register(ctx, wallet.ID); err != nil {
		return Wallet{}, err
	}

	return wallet, nil
}

// EnsureForOwner returns the owner's wallet, provisioning one on first use.
func (s *Service) EnsureForOwner(ctx context.Context, ownerID, currency string) (Wallet, error) {
	wallet, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}
	return s.Create(ctx, CreateInput{OwnerID: ownerID, Currency: currency})
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet owned by the given account.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, wallet.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: wallet.ID, Amount: amount, Currency: wallet.Currency, AsOf: time.Now().UTC()}, nil
}

// Deactivate blocks further mutations on the wallet. Wallets are never
// deleted; the transaction history stays intact.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, StatusInactive)
}
