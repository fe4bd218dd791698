package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory session repository for local development and
// tests. List returns sessions in creation order.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]CallSession
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]CallSession)}
}

func (r *MemoryRepo) Create(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.byID[s.ID] = s
	return nil
}

func (r *MemoryRepo) Save(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		return ErrNotFound
	}
	r.byID[s.ID] = s
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CallSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

func (r *MemoryRepo) ListByState(ctx context.Context, state State) ([]CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []CallSession
	for _, id := range r.order {
		if s := r.byID[id]; s.State == state {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	deleted := 0
	for _, id := range r.order {
		if r.byID[id].CreatedAt.Before(cutoff) {
			delete(r.byID, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return deleted, nil
}
