package pairing

import "context"

// Repo defines persistence for pairing tokens. Tokens are keyed by code and
// written whole.
type Repo interface {
	Put(ctx context.Context, t Token) error
	Get(ctx context.Context, code string) (Token, error)
	Delete(ctx context.Context, code string) error
}
