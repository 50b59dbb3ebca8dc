package dictations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores dictation records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Dictation
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Dictation)}
}

func memKey(scope, id string) string {
	return scope + "/" + id
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, d Dictation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[memKey(d.Scope, d.ID)] = d
	return nil
}

// GetByID returns a record by its scope and ID.
func (r *MemoryRepo) GetByID(ctx context.Context, scope, id string) (Dictation, error) {
	if err := ctx.Err(); err != nil {
		return Dictation{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[memKey(scope, id)]
	if !ok {
		return Dictation{}, ErrNotFound
	}
	return d, nil
}

// Overwrite replaces an existing record wholesale.
func (r *MemoryRepo) Overwrite(ctx context.Context, d Dictation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memKey(d.Scope, d.ID)
	if _, ok := r.byID[key]; !ok {
		return ErrNotFound
	}
	r.byID[key] = d
	return nil
}

// ListByScope returns records in a scope, newest first.
func (r *MemoryRepo) ListByScope(ctx context.Context, scope string) ([]Dictation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Dictation
	for _, d := range r.byID {
		if d.Scope == scope {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListOlderThan returns all records created before the cutoff, across scopes.
func (r *MemoryRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Dictation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Dictation
	for _, d := range r.byID {
		if d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Delete removes a record.
func (r *MemoryRepo) Delete(ctx context.Context, scope, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memKey(scope, id)
	if _, ok := r.byID[key]; !ok {
		return ErrNotFound
	}
	delete(r.byID, key)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
