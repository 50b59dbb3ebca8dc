package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"scribe-backend/internal/bootstrap"
	"scribe-backend/internal/dictations"
	"scribe-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingDictationID indicates a message missing the dictation id.
type ErrMissingDictationID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingDictationID) Error() string { return "missing dictation id" }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.DictationID) == "" {
		return msg, meta, ErrMissingDictationID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, app *bootstrap.App, body string) error {
	if app == nil {
		return errors.New("dictation service not configured")
	}
	processor := app.DictationProcessor
	if processor == nil {
		processor = app.DictationsService
	}
	if processor == nil {
		return errors.New("dictation service not configured")
	}

	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}

	scope := msg.Scope
	if strings.TrimSpace(scope) == "" {
		scope = dictations.DefaultScope
	}
	ctxWithRequest := dictations.WithRequestID(ctx, msg.RequestID)
	processor.Process(ctxWithRequest, scope, msg.DictationID)
	return nil
}
