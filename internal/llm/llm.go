package llm

import (
	"context"
	"errors"
)

// Client abstracts text generation providers for dictation processing.
type Client interface {
	Generate(ctx context.Context, input GenerateInput) (string, error)
}

// FilePart references one uploaded asset handed to the model, either by
// provider URI (gs://...) or as inline bytes when no URI scheme exists.
type FilePart struct {
	URI      string
	MimeType string
	Data     []byte
}

// GenerateInput captures the inputs for one generation call.
type GenerateInput struct {
	Prompt string
	Files  []FilePart
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderClient) Generate(ctx context.Context, input GenerateInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}
