package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("object not found")

// ErrSignedURLUnsupported is returned by stores that cannot mint signed URLs.
var ErrSignedURLUnsupported = errors.New("signed urls not supported")

// ObjectStore defines the contract for saving and retrieving binary objects
// at caller-chosen keys. All mutation is whole-object: a Save replaces any
// existing object at the key.
type ObjectStore interface {
	Save(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// SignedURL returns a time-limited download URL for the object, or
	// ErrSignedURLUnsupported for backends without that capability.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// URI returns the provider-native reference for a key (gs://..., s3://...),
	// or empty when the backend has no addressable URI scheme.
	URI(key string) string
}
