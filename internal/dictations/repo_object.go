package dictations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"scribe-backend/internal/shared/storage/object"
	"scribe-backend/internal/shared/telemetry"
)

const metadataPrefix = "dictations/metadata/"

// ObjectRepo persists dictation records as JSON documents in an object store,
// one document per record at {prefix}/{scope}/{id}.json. Saving a document
// replaces it wholesale, which keeps every write atomic from the caller's
// perspective without transactions.
type ObjectRepo struct {
	Store object.ObjectStore
}

// NewObjectRepo constructs an ObjectRepo.
func NewObjectRepo(store object.ObjectStore) *ObjectRepo {
	return &ObjectRepo{Store: store}
}

func docKey(scope, id string) string {
	return metadataPrefix + scope + "/" + id + ".json"
}

// Create stores the record document.
func (r *ObjectRepo) Create(ctx context.Context, d Dictation) error {
	return r.save(ctx, d)
}

// Overwrite replaces the record document wholesale.
func (r *ObjectRepo) Overwrite(ctx context.Context, d Dictation) error {
	return r.save(ctx, d)
}

func (r *ObjectRepo) save(ctx context.Context, d Dictation) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dictation %s/%s: %w", d.Scope, d.ID, err)
	}
	if _, err := r.Store.Save(ctx, docKey(d.Scope, d.ID), "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("save dictation %s/%s: %w", d.Scope, d.ID, err)
	}
	return nil
}

// GetByID returns a record by its scope and ID.
func (r *ObjectRepo) GetByID(ctx context.Context, scope, id string) (Dictation, error) {
	body, err := r.Store.Open(ctx, docKey(scope, id))
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Dictation{}, ErrNotFound
		}
		return Dictation{}, fmt.Errorf("open dictation %s/%s: %w", scope, id, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Dictation{}, fmt.Errorf("read dictation %s/%s: %w", scope, id, err)
	}
	var d Dictation
	if err := json.Unmarshal(data, &d); err != nil {
		return Dictation{}, fmt.Errorf("decode dictation %s/%s: %w", scope, id, err)
	}
	return d, nil
}

// ListByScope returns records in a scope, newest first. Unreadable documents
// are skipped, matching list semantics over a store other writers share.
func (r *ObjectRepo) ListByScope(ctx context.Context, scope string) ([]Dictation, error) {
	return r.list(ctx, metadataPrefix+scope+"/")
}

// ListOlderThan returns all records created before the cutoff, across scopes.
func (r *ObjectRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Dictation, error) {
	all, err := r.list(ctx, metadataPrefix)
	if err != nil {
		return nil, err
	}
	var out []Dictation
	for _, d := range all {
		if d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *ObjectRepo) list(ctx context.Context, prefix string) ([]Dictation, error) {
	keys, err := r.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list dictations prefix=%s: %w", prefix, err)
	}

	var out []Dictation
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		body, err := r.Store.Open(ctx, key)
		if err != nil {
			telemetry.Warn("dictations.list.skip", map[string]any{"key": key, "err": err.Error()})
			continue
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			telemetry.Warn("dictations.list.skip", map[string]any{"key": key, "err": err.Error()})
			continue
		}
		var d Dictation
		if err := json.Unmarshal(data, &d); err != nil {
			telemetry.Warn("dictations.list.skip", map[string]any{"key": key, "err": err.Error()})
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes the record document.
func (r *ObjectRepo) Delete(ctx context.Context, scope, id string) error {
	if err := r.Store.Delete(ctx, docKey(scope, id)); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete dictation %s/%s: %w", scope, id, err)
	}
	return nil
}

var _ Repo = (*ObjectRepo)(nil)
