package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Static simulates a provider that approves everything. Used in development
// and tests; order statuses can be overridden to exercise failure paths.
type Static struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewStatic builds a static provider.
func NewStatic() *Static {
	return &Static{statuses: make(map[string]Status)}
}

// Name identifies the provider on payment records.
func (s *Static) Name() string { return "static" }

// CreateOrder opens an order with a synthetic reference, pending by default.
func (s *Static) CreateOrder(_ context.Context, _ OrderRequest) (Order, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.statuses[id] = StatusPending
	s.mu.Unlock()
	return Order{
		ProviderID:  id,
		ApprovalURL: "https://pay.example.test/approve/" + id,
		ExpiresAt:   time.Now().UTC().Add(15 * time.Minute),
	}, nil
}

// GetStatus reports the order status, pending for unknown ids.
func (s *Static) GetStatus(_ context.Context, providerID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.statuses[providerID]; ok {
		return st, nil
	}
	return StatusPending, nil
}

// Refund approves the reversal with a synthetic reference.
func (s *Static) Refund(_ context.Context, _ string, amount int64) (Refund, error) {
	return Refund{RefundID: uuid.NewString(), Amount: amount}, nil
}

// SetStatus overrides an order's status. Test hook.
func (s *Static) SetStatus(providerID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[providerID] = status
}
