package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"scribe-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a new GCS-backed object store. Credentials come from the
// environment (GOOGLE_APPLICATION_CREDENTIALS or workload identity).
func New(ctx context.Context, bucket string) (object.ObjectStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Store{client: client, bucket: bucket}, nil
}

// Save writes the reader contents to GCS at the given storage key.
func (s *Store) Save(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gcs write bucket=%s key=%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("gcs close writer bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs read bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return rc, nil
}

// Delete removes a stored object. Missing objects are reported as ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return object.ErrNotFound
		}
		return fmt.Errorf("gcs delete bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

// List returns all keys under the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list bucket=%s prefix=%s: %w", s.bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// SignedURL mints a time-limited V4 download URL for the object.
func (s *Store) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("gcs signed url bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return url, nil
}

// URI returns the gs:// reference for a key, consumable by Vertex AI.
func (s *Store) URI(key string) string {
	return "gs://" + s.bucket + "/" + key
}
