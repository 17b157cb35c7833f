package auth

import (
	"errors"
	"time"
)

// Role is the single authorisation claim carried in a token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValidRole reports whether r is a role the directory may hold.
func IsValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the public view of a directory entry. It never carries a secret.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// User is a stored directory entry.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity strips the stored secret.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// Sentinel errors for auth operations.
var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")

	// ErrInvalidSignature covers every token that cannot be trusted:
	// malformed, tampered, signed with another key or algorithm.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token has expired")

	ErrSecretMissing = errors.New("token signing secret is not configured")
	ErrInvalidTTL    = errors.New("token ttl must be at least one second")
)
