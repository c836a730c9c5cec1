// Package session maps client-held session tokens to user ids.
//
// A Store issues, validates and revokes opaque tokens; the Manager carries
// them to the browser inside a signed cookie.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the amount of randomness in a session token.
const TokenBytes = 32

// Store issues and validates session tokens. Implementations keep only a
// hash of each token.
type Store interface {
	// Issue creates a new session bound to userID and returns its token.
	Issue(ctx context.Context, userID int64) (string, error)

	// Validate returns the user bound to token. ok is false when the token
	// is unknown, revoked or expired.
	Validate(ctx context.Context, token string) (userID int64, ok bool, err error)

	// Revoke destroys the session. Revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error

	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

func newToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex sha256 of a session token, the form in which
// tokens are stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
