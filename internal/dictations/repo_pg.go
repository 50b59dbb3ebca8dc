package dictations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres. The record is stored as one JSONB
// document per row and every write replaces the whole document.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new record.
func (r *PGRepo) Create(ctx context.Context, d Dictation) error {
	const query = `INSERT INTO dictations (scope, id, doc, created_at) VALUES ($1, $2, $3, $4)`
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dictation %s/%s: %w", d.Scope, d.ID, err)
	}
	_, err = r.DB.ExecContext(ctx, query, d.Scope, d.ID, doc, d.CreatedAt)
	return err
}

// GetByID returns a record by scope and ID.
func (r *PGRepo) GetByID(ctx context.Context, scope, id string) (Dictation, error) {
	const query = `SELECT doc FROM dictations WHERE scope = $1 AND id = $2 LIMIT 1`
	var doc []byte
	err := r.DB.QueryRowContext(ctx, query, scope, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Dictation{}, ErrNotFound
	}
	if err != nil {
		return Dictation{}, err
	}
	var d Dictation
	if err := json.Unmarshal(doc, &d); err != nil {
		return Dictation{}, fmt.Errorf("decode dictation %s/%s: %w", scope, id, err)
	}
	return d, nil
}

// Overwrite replaces the record document wholesale.
func (r *PGRepo) Overwrite(ctx context.Context, d Dictation) error {
	const query = `UPDATE dictations SET doc = $3 WHERE scope = $1 AND id = $2`
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dictation %s/%s: %w", d.Scope, d.ID, err)
	}
	res, err := r.DB.ExecContext(ctx, query, d.Scope, d.ID, doc)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByScope returns records in a scope, newest first.
func (r *PGRepo) ListByScope(ctx context.Context, scope string) ([]Dictation, error) {
	const query = `SELECT doc FROM dictations WHERE scope = $1 ORDER BY created_at DESC`
	return r.queryDocs(ctx, query, scope)
}

// ListOlderThan returns all records created before the cutoff, across scopes.
func (r *PGRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Dictation, error) {
	const query = `SELECT doc FROM dictations WHERE created_at < $1`
	return r.queryDocs(ctx, query, cutoff)
}

func (r *PGRepo) queryDocs(ctx context.Context, query string, args ...any) ([]Dictation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dictation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d Dictation
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("decode dictation row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a record.
func (r *PGRepo) Delete(ctx context.Context, scope, id string) error {
	const query = `DELETE FROM dictations WHERE scope = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, scope, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
