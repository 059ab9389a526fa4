package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash hashes a key using SHA256
func Hash(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Matches reports whether provided equals expected. Both sides are hashed
// first so the comparison runs in constant time regardless of length.
func Matches(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(provided))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
