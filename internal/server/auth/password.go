// Package auth implements the server's authentication primitives: password
// credentials, signed session tokens and bearer session resolution.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 round count. Credentials do not record
	// it, so changing it invalidates every stored password.
	DefaultIterations = 100_000
	SaltSize          = 16
	DigestSize        = 32
)

// Hasher derives and checks password credentials of the form
// "hex(salt):hex(digest)" with PBKDF2-HMAC-SHA256.
type Hasher struct {
	iterations int
}

func NewHasher() *Hasher {
	return &Hasher{iterations: DefaultIterations}
}

// Hash salts password with SaltSize fresh random bytes.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return h.HashWithSalt(password, salt), nil
}

// HashWithSalt is the deterministic form of Hash.
func (h *Hasher) HashWithSalt(password string, salt []byte) string {
	digest := h.derive(password, salt)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest)
}

// Verify reports whether password matches credential. Malformed credentials
// never match.
func (h *Hasher) Verify(password, credential string) bool {
	parts := strings.Split(credential, ":")
	if len(parts) != 2 {
		return false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil || len(want) != DigestSize {
		return false
	}

	got := h.derive(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, DigestSize, sha256.New)
}
