package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/blog/internal/database"
	"github.com/isdelr/blog/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateUsername is returned when a username is already taken.
var ErrDuplicateUsername = errors.New("username already registered")

// UserServiceProvider defines the interface for the credential store.
type UserServiceProvider interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
}

// UserService persists user accounts in the user table.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// FindByUsername retrieves a user, including the password hash, by exact
// username. It returns (nil, nil) when no such user exists.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password, created_at FROM user WHERE username = ?", username)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %q: %w", username, err)
	}
	return user, nil
}

// FindByID retrieves a user by id. It returns (nil, nil) when the row does
// not exist.
func (s *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password, created_at FROM user WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return user, nil
}

// CreateUser inserts a new user with an already hashed password and returns
// its id. The UNIQUE index on username is the only duplicate check, so
// concurrent registrations of the same name cannot both succeed.
func (s *UserService) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO user (username, password) VALUES (?, ?)", username, passwordHash)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return id, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended result codes only the primary code is reported.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
