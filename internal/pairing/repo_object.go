package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"scribe-backend/internal/shared/storage/object"
)

const tokenPrefix = "pairing/"

// ObjectRepo persists pairing tokens as JSON documents in an object store,
// one document per code at pairing/{code}.json.
type ObjectRepo struct {
	Store object.ObjectStore
}

// NewObjectRepo constructs an ObjectRepo.
func NewObjectRepo(store object.ObjectStore) *ObjectRepo {
	return &ObjectRepo{Store: store}
}

func tokenKey(code string) string {
	return tokenPrefix + code + ".json"
}

// Put stores the token document.
func (r *ObjectRepo) Put(ctx context.Context, t Token) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal pairing token %s: %w", t.Code, err)
	}
	if _, err := r.Store.Save(ctx, tokenKey(t.Code), "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("save pairing token %s: %w", t.Code, err)
	}
	return nil
}

// Get returns a token by code.
func (r *ObjectRepo) Get(ctx context.Context, code string) (Token, error) {
	body, err := r.Store.Open(ctx, tokenKey(code))
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("open pairing token %s: %w", code, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Token{}, fmt.Errorf("read pairing token %s: %w", code, err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("decode pairing token %s: %w", code, err)
	}
	return t, nil
}

// Delete removes a token.
func (r *ObjectRepo) Delete(ctx context.Context, code string) error {
	if err := r.Store.Delete(ctx, tokenKey(code)); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete pairing token %s: %w", code, err)
	}
	return nil
}

var _ Repo = (*ObjectRepo)(nil)
