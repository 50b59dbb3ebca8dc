package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"scribe-backend/internal/shared/telemetry"
	"scribe-backend/internal/shared/util"
)

const (
	defaultTTL  = 10 * time.Minute
	codeDigits  = 6
	maxAttempts = 5
)

// Service issues and redeems short-lived pairing codes.
type Service struct {
	Repo Repo
	TTL  time.Duration

	now func() time.Time
}

// Register stores a pairing code for the given scope. The first device picks
// the code and registers it here; re-registering an existing code overwrites
// the previous token. When no code is supplied a fresh one is generated,
// retrying a few times on collision with a live code.
func (s *Service) Register(ctx context.Context, scope, code string) (Token, error) {
	clean, err := util.SanitizeScope(scope)
	if err != nil {
		return Token{}, ErrInvalidScope
	}

	code = strings.TrimSpace(code)
	if code != "" {
		if !validCode(code) {
			return Token{}, ErrInvalidCode
		}
		t := Token{
			Code:     code,
			Scope:    clean,
			IssuedAt: s.nowUTC(),
		}
		if err := s.Repo.Put(ctx, t); err != nil {
			return Token{}, err
		}
		return t, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		generated, err := generateCode()
		if err != nil {
			return Token{}, err
		}
		if existing, err := s.Repo.Get(ctx, generated); err == nil && !s.expired(existing) {
			continue
		}
		t := Token{
			Code:     generated,
			Scope:    clean,
			IssuedAt: s.nowUTC(),
		}
		if err := s.Repo.Put(ctx, t); err != nil {
			return Token{}, err
		}
		return t, nil
	}
	return Token{}, errors.New("could not allocate pairing code")
}

// Redeem exchanges a pairing code for its scope. Codes are single use: a
// successful redeem deletes the token. Expired codes are deleted and
// reported as ErrExpired.
func (s *Service) Redeem(ctx context.Context, code string) (Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Token{}, ErrNotFound
	}

	t, err := s.Repo.Get(ctx, code)
	if err != nil {
		return Token{}, err
	}
	if s.expired(t) {
		if delErr := s.Repo.Delete(ctx, code); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			telemetry.Warn("pairing.expired.delete", map[string]any{
				"code":  code,
				"error": delErr.Error(),
			})
		}
		return Token{}, ErrExpired
	}
	if err := s.Repo.Delete(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
		return Token{}, err
	}
	return t, nil
}

func (s *Service) expired(t Token) bool {
	return s.nowUTC().After(t.ExpiresAt(s.ttl()))
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return defaultTTL
}

func (s *Service) nowUTC() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func validCode(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
