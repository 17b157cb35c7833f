package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

const minPasswordLength = 6

// Register creates a RoleUser entry in dir and returns its identity.
func Register(ctx context.Context, dir UserDirectory, email, password string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Identity{}, ErrMissingCredentials
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return Identity{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Identity{}, ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}

	user := &User{Email: email, PasswordHash: hash, Role: RoleUser}
	if err := dir.Create(ctx, user); err != nil {
		return Identity{}, fmt.Errorf("registering %s: %w", email, err)
	}
	return user.Identity(), nil
}
