package paymethod

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Method
}

// NewMemoryRepository constructs an in-memory payment method store for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Method)}
}

func (r *memoryRepository) Create(_ context.Context, m Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return Method{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Method
	for _, m := range r.byID {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) Update(_ context.Context, m Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[m.ID]
	if !ok {
		return ErrNotFound
	}
	current.Label = m.Label
	current.IsDefault = m.IsDefault
	current.UpdatedAt = time.Now().UTC()
	r.byID[m.ID] = current
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memoryRepository) ClearDefault(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.byID {
		if m.UserID == userID && m.IsDefault {
			m.IsDefault = false
			m.UpdatedAt = time.Now().UTC()
			r.byID[id] = m
		}
	}
	return nil
}
