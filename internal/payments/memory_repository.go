package payments

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]Payment
	byTx       map[string]string
	byProvider map[string]string
}

// NewMemoryRepository constructs an in-memory payment store for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:       make(map[string]Payment),
		byTx:       make(map[string]string),
		byProvider: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	r.byTx[p.TransactionID] = p.ID
	if p.ProviderTxID != "" {
		r.byProvider[p.ProviderTxID] = p.ID
	}
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepository) GetByTransaction(_ context.Context, txID string) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTx[txID]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) GetByProviderTx(_ context.Context, providerTxID string) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byProvider[providerTxID]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) Update(_ context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[p.ID]
	if !ok {
		return ErrPaymentNotFound
	}
	current.Status = p.Status
	current.ProviderTxID = p.ProviderTxID
	current.RefundID = p.RefundID
	current.UpdatedAt = time.Now().UTC()
	r.byID[p.ID] = current
	if current.ProviderTxID != "" {
		r.byProvider[current.ProviderTxID] = current.ID
	}
	return nil
}
