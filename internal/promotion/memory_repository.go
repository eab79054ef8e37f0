package promotion

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*Promotion
	byCode map[string]string
}

// NewMemoryRepository constructs an in-memory promotion store for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]*Promotion), byCode: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, p Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[p.Code]; exists {
		return errors.New("promotion code exists")
	}
	cp := p
	r.byID[p.ID] = &cp
	r.byCode[p.Code] = p.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return *p, nil
}

func (r *memoryRepository) GetByCode(_ context.Context, code string) (Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return *r.byID[id], nil
}

func (r *memoryRepository) ListActive(_ context.Context, now time.Time) ([]Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Promotion
	for _, p := range r.byID {
		if p.ActiveAt(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryRepository) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[code]
	if !ok {
		return ErrNotFound
	}
	p := r.byID[id]
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return ErrUsageLimitExceeded
	}
	p.UsageCount++
	return nil
}
