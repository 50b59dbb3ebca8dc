package util

import (
	"errors"
	"strings"
)

// SanitizeScope validates a scope identifier for use as a storage path segment.
func SanitizeScope(scope string) (string, error) {
	s := strings.TrimSpace(scope)
	if s == "" {
		return "", errors.New("invalid scope")
	}
	if strings.Contains(s, "..") || strings.ContainsAny(s, "/\\") {
		return "", errors.New("invalid scope")
	}
	return s, nil
}
