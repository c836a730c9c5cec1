package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/blog/internal/models"
)

// SQLiteStore keeps sessions in the session table.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore creates a store whose sessions live for ttl.
func NewSQLiteStore(db *sql.DB, ttl time.Duration) *SQLiteStore {
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}
}

// Issue stores a new session for userID and returns its token.
func (s *SQLiteStore) Issue(ctx context.Context, userID int64) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.ttl).Unix()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO session (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		HashToken(token), userID, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to store session for user %d: %w", userID, err)
	}
	return token, nil
}

// Validate returns the user bound to an unexpired session.
func (s *SQLiteStore) Validate(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	sess := models.Session{TokenHash: HashToken(token)}
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM session WHERE token_hash = ?",
		sess.TokenHash).Scan(&sess.UserID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to validate session: %w", err)
	}
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	if sess.IsExpiredAt(s.now()) {
		return 0, false, nil
	}
	return sess.UserID, true, nil
}

// Revoke deletes the session row, if any.
func (s *SQLiteStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE token_hash = ?", HashToken(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session past its expiry.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
