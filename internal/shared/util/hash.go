package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSecret returns the hex SHA-256 digest of a caller-supplied secret.
// An empty secret hashes to the empty string so that "no secret" stays
// representable as an empty field.
func HashSecret(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a plaintext secret against a stored hash in
// constant time. An empty stored hash matches any input.
func SecretMatches(storedHash, supplied string) bool {
	if storedHash == "" {
		return true
	}
	suppliedHash := HashSecret(supplied)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(suppliedHash)) == 1
}
