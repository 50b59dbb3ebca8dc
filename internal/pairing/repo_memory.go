package pairing

import (
	"context"
	"sync"
)

// MemoryRepo stores pairing tokens in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byCode map[string]Token
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byCode: make(map[string]Token)}
}

// Put stores the token.
func (r *MemoryRepo) Put(ctx context.Context, t Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[t.Code] = t
	return nil
}

// Get returns a token by code.
func (r *MemoryRepo) Get(ctx context.Context, code string) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byCode[code]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

// Delete removes a token.
func (r *MemoryRepo) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[code]; !ok {
		return ErrNotFound
	}
	delete(r.byCode, code)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
