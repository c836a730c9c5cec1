package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestCreateUser_ThenFind(t *testing.T) {
	s := NewUserService(setupDB(t))
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "alice", "hash-a")
	require.NoError(t, err)
	require.Positive(t, id)

	byName, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, id, byName.ID)
	assert.Equal(t, "hash-a", byName.PasswordHash)
	assert.False(t, byName.CreatedAt.IsZero())

	byID, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice", byID.Username)
}

func TestCreateUser_AssignsDistinctIDs(t *testing.T) {
	s := NewUserService(setupDB(t))
	ctx := context.Background()

	a, err := s.CreateUser(ctx, "a", "h")
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, "b", "h")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFind_AbsentIsNilNil(t *testing.T) {
	s := NewUserService(setupDB(t))
	ctx := context.Background()

	u, err := s.FindByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFindByUsername_IsExactMatch(t *testing.T) {
	s := NewUserService(setupDB(t))
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "Alice", "h")
	require.NoError(t, err)

	u, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := setupDB(t)
	s := NewUserService(db)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "bob", "h1")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "bob", "h2")
	require.ErrorIs(t, err, ErrDuplicateUsername)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM user WHERE username = 'bob'`).Scan(&n))
	assert.Equal(t, 1, n)

	u, err := s.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "h1", u.PasswordHash)
}

func TestCreateUser_ConcurrentSameUsername(t *testing.T) {
	s := NewUserService(setupDB(t))
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dups    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(ctx, "race", "h")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicateUsername):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, dups)
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestCreateUser_StoreFailureIsNotDuplicate(t *testing.T) {
	db, mock := newSQLMockDB(t)
	s := NewUserService(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), "carol", "h")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
	assert.Contains(t, err.Error(), "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_StoreFailurePropagates(t *testing.T) {
	db, mock := newSQLMockDB(t)
	s := NewUserService(db)

	mock.ExpectQuery("SELECT id, username, password, created_at FROM user WHERE id").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrConnDone)

	u, err := s.FindByID(context.Background(), 7)
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}
