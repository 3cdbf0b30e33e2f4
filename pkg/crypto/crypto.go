// Package crypto provides session token generation and password hashing.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// saltDomain keeps password salts distinct from any other sha256 use of a username.
const saltDomain = "litka/password-salt/v1:"

// GenerateToken generates a random token string (32 bytes, hex-encoded).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("crypto: generate token: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// HashToken hashes a raw token string with SHA-256.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h[:])
}

// usernameSalt derives a 16-byte salt from the username so hashing stays
// deterministic for a given (username, password) pair.
func usernameSalt(username string) []byte {
	h := sha256.Sum256([]byte(saltDomain + username))
	return h[:16]
}

// HashPassword hashes a password using Argon2id and returns it hex-encoded.
func HashPassword(username, password string) string {
	key := argon2.IDKey([]byte(password), usernameSalt(username), 1, 64*1024, 4, 32)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether password matches the stored hash in constant time.
func VerifyPassword(username, password, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), usernameSalt(username), 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(got, want) == 1
}
