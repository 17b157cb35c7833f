package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserDirectory is the source of truth for identities.
type UserDirectory interface {
	// FindByEmail matches email exactly. Returns ErrUserNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns ErrUserNotFound when no entry has id.
	FindByID(ctx context.Context, id string) (*User, error)
	// Create stores a new entry. Returns ErrEmailExists on a duplicate email.
	Create(ctx context.Context, user *User) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserDirectory implements UserDirectory using SQLite.
type SQLiteUserDirectory struct {
	db *sql.DB
}

// NewUserDirectory creates a new SQLite-backed user directory.
func NewUserDirectory(db *sql.DB) *SQLiteUserDirectory {
	return &SQLiteUserDirectory{db: db}
}

// Create inserts a new user. The ID is generated if empty.
func (r *SQLiteUserDirectory) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, string(user.Role), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// FindByEmail retrieves a user by exact email.
func (r *SQLiteUserDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "SELECT id, email, password_hash, role, created_at FROM users WHERE email = ?", email)
}

// FindByID retrieves a user by id.
func (r *SQLiteUserDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT id, email, password_hash, role, created_at FROM users WHERE id = ?", id)
}

// Count returns the total number of users.
func (r *SQLiteUserDirectory) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserDirectory) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	var role, createdAt string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
