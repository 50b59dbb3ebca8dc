package dictations

import (
	"context"
	"time"
)

// Repo defines persistence operations for dictation records. All writes are
// whole-document: Create and Overwrite replace the entire record, never a
// field subset.
type Repo interface {
	Create(ctx context.Context, d Dictation) error
	GetByID(ctx context.Context, scope, id string) (Dictation, error)
	Overwrite(ctx context.Context, d Dictation) error
	ListByScope(ctx context.Context, scope string) ([]Dictation, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Dictation, error)
	Delete(ctx context.Context, scope, id string) error
}
