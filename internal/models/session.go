package models

import "time"

// Session is the server-side record behind a session cookie. Only the
// hash of the client-held token is kept.
type Session struct {
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt reports whether the session is no longer valid at t.
func (s Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
