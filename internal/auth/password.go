package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and checks salted one-way password digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) bool
}

// BcryptHasher implements Hasher with bcrypt. Every hash carries its own
// random salt, so hashing the same password twice gives different values.
//
// Passwords are reduced to a base64 SHA-256 digest before bcrypt sees them,
// which keeps every byte significant whatever the password length.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher using the given bcrypt cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt digest of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(prehash(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext is the password hashed into hash. The
// digest comparison is constant time; a malformed hash never verifies.
func (h *BcryptHasher) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(plaintext)) == nil
}

// prehash maps a password of any length to 44 bytes, under bcrypt's 72.
func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
