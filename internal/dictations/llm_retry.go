package dictations

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"scribe-backend/internal/llm"
	"scribe-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

type retryingLLM struct {
	base        llm.Client
	requestID   string
	dictationID string
}

func newRetryingLLM(base llm.Client, dictationID, requestID string) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{
		base:        base,
		requestID:   requestID,
		dictationID: dictationID,
	}
}

func (r retryingLLM) Generate(ctx context.Context, input llm.GenerateInput) (string, error) {
	out, err := r.base.Generate(ctx, input)
	if err == nil || !shouldRetryLLM(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"request_id":   r.requestID,
		"dictation_id": r.dictationID,
		"error":        sanitizeError(err),
	})
	select {
	case <-time.After(llmRetryBaseDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return r.base.Generate(ctx, input)
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "resource_exhausted") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
