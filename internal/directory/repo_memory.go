package directory

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory destination repository used for local
// development and tests. Insertion order is preserved for List.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Destination
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Destination)}
}

func (r *MemoryRepo) List(ctx context.Context) ([]Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Destination, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneDestination(r.byID[id]))
	}
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return Destination{}, ErrNotFound
	}
	return cloneDestination(d), nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, d Destination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.ID]; !ok {
		r.order = append(r.order, d.ID)
	}
	r.byID[d.ID] = cloneDestination(d)
	return nil
}

func (r *MemoryRepo) SetAvailability(ctx context.Context, destinationID, medicationKey string, rec AvailabilityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[destinationID]
	if !ok {
		return ErrNotFound
	}
	if d.Inventory == nil {
		d.Inventory = make(map[string]AvailabilityRecord)
	}
	d.Inventory[medicationKey] = rec
	r.byID[destinationID] = d
	return nil
}

// cloneDestination keeps callers from mutating the stored inventory map.
func cloneDestination(d Destination) Destination {
	if d.Inventory == nil {
		return d
	}
	inv := make(map[string]AvailabilityRecord, len(d.Inventory))
	for k, v := range d.Inventory {
		inv[k] = v
	}
	d.Inventory = inv
	return d
}
