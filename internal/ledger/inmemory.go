package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]Transaction
	byKey        map[string]string // walletID+"|"+idempotencyKey -> txID
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and running without a database.
func NewInMemory() Store {
	return &inMemoryStore{
		balances:     make(map[string]int64),
		transactions: make(map[string]Transaction),
		byKey:        make(map[string]string),
	}
}

func (s *inMemoryStore) Register(_ context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[walletID]; !exists {
		s.balances[walletID] = 0
	}
	return nil
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, exists := s.balances[walletID]
	if !exists {
		return 0, ErrWalletNotFound
	}
	return balance, nil
}

// Apply accepts a zero delta so fully discounted purchases still leave an
// auditable entry.
func (s *inMemoryStore) Apply(_ context.Context, in Input) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, exists := s.balances[in.WalletID]
	if !exists {
		return Transaction{}, ErrWalletNotFound
	}
	if prior, dup := s.lookupKey(in.WalletID, in.IdempotencyKey); dup {
		return prior, ErrDuplicateTransaction
	}
	if in.Amount < 0 && balance+in.Amount < 0 {
		return Transaction{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	rec := Transaction{
		ID:             uuid.NewString(),
		WalletID:       in.WalletID,
		Amount:         in.Amount,
		Kind:           in.Kind,
		Status:         StatusCompleted,
		IdempotencyKey: in.IdempotencyKey,
		Description:    in.Description,
		CreatedAt:      now,
		SettledAt:      now,
	}
	s.balances[in.WalletID] = balance + in.Amount
	s.store(rec)
	return rec, nil
}

func (s *inMemoryStore) Begin(_ context.Context, in Input) (Transaction, error) {
	if in.Amount == 0 {
		return Transaction{}, fmt.Errorf("amount must be non-zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[in.WalletID]; !exists {
		return Transaction{}, ErrWalletNotFound
	}
	if prior, dup := s.lookupKey(in.WalletID, in.IdempotencyKey); dup {
		return prior, ErrDuplicateTransaction
	}

	rec := Transaction{
		ID:             uuid.NewString(),
		WalletID:       in.WalletID,
		Amount:         in.Amount,
		Kind:           in.Kind,
		Status:         StatusPending,
		IdempotencyKey: in.IdempotencyKey,
		Description:    in.Description,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      in.ExpiresAt,
	}
	s.store(rec)
	return rec, nil
}

func (s *inMemoryStore) Complete(_ context.Context, txID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.transactions[txID]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	if rec.Status != StatusPending {
		return rec, ErrTransactionFinal
	}

	balance := s.balances[rec.WalletID]
	if rec.Amount < 0 && balance+rec.Amount < 0 {
		return Transaction{}, ErrInsufficientFunds
	}

	s.balances[rec.WalletID] = balance + rec.Amount
	rec.Status = StatusCompleted
	rec.SettledAt = time.Now().UTC()
	s.transactions[txID] = rec
	return rec, nil
}

func (s *inMemoryStore) Fail(_ context.Context, txID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.transactions[txID]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	if rec.Status != StatusPending {
		return rec, ErrTransactionFinal
	}

	rec.Status = StatusFailed
	rec.SettledAt = time.Now().UTC()
	s.transactions[txID] = rec
	return rec, nil
}

func (s *inMemoryStore) Get(_ context.Context, txID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.transactions[txID]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, nil
}

func (s *inMemoryStore) FindByKey(_ context.Context, walletID, key string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, found := s.lookupKey(walletID, key)
	if !found {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, nil
}

func (s *inMemoryStore) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, rec := range s.transactions {
		if rec.WalletID == walletID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// callers must hold mu.
func (s *inMemoryStore) lookupKey(walletID, key string) (Transaction, bool) {
	txID, exists := s.byKey[walletID+"|"+key]
	if !exists {
		return Transaction{}, false
	}
	return s.transactions[txID], true
}

// callers must hold mu.
func (s *inMemoryStore) store(rec Transaction) {
	s.transactions[rec.ID] = rec
	s.byKey[rec.WalletID+"|"+rec.IdempotencyKey] = rec.ID
}
