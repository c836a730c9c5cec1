package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/isdelr/blog/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func createUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO user (username, password) VALUES (?, 'x')`, username)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSQLiteStore_IssueValidateRevoke(t *testing.T) {
	db := setupDB(t)
	s := NewSQLiteStore(db, time.Hour)
	ctx := context.Background()
	uid := createUser(t, db, "alice")

	token, err := s.Issue(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, token, 2*TokenBytes)

	got, ok, err := s.Validate(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uid, got)

	require.NoError(t, s.Revoke(ctx, token))
	_, ok, err = s.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	// idempotent
	require.NoError(t, s.Revoke(ctx, token))
}

func TestSQLiteStore_TokensAreUniqueAndStoredHashed(t *testing.T) {
	db := setupDB(t)
	s := NewSQLiteStore(db, time.Hour)
	ctx := context.Background()
	uid := createUser(t, db, "alice")

	a, err := s.Issue(ctx, uid)
	require.NoError(t, err)
	b, err := s.Issue(ctx, uid)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session WHERE token_hash = ?`, a).Scan(&n))
	assert.Zero(t, n, "plaintext token must not be stored")
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session WHERE token_hash = ?`, HashToken(a)).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_UnknownAndEmptyTokens(t *testing.T) {
	s := NewSQLiteStore(setupDB(t), time.Hour)
	ctx := context.Background()

	_, ok, err := s.Validate(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Validate(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Revoke(ctx, ""))
}

func TestSQLiteStore_ExpiredSessions(t *testing.T) {
	db := setupDB(t)
	s := NewSQLiteStore(db, time.Hour)
	ctx := context.Background()
	uid := createUser(t, db, "alice")

	base := time.Now()
	s.now = func() time.Time { return base }
	oldToken, err := s.Issue(ctx, uid)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	freshToken, err := s.Issue(ctx, uid)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, ok, err := s.Validate(ctx, oldToken)
	require.NoError(t, err)
	assert.False(t, ok, "expired session must not validate")

	_, ok, err = s.Validate(ctx, freshToken)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSQLiteStore_DeletingUserDropsSessions(t *testing.T) {
	db := setupDB(t)
	s := NewSQLiteStore(db, time.Hour)
	ctx := context.Background()
	uid := createUser(t, db, "alice")

	token, err := s.Issue(ctx, uid)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM user WHERE id = ?`, uid)
	require.NoError(t, err)

	_, ok, err := s.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}
