package auth

import (
	"context"
	"errors"
	"fmt"
)

// CredentialValidator checks an (email, password) pair against a UserDirectory.
type CredentialValidator struct {
	dir UserDirectory

	// dummyHash is verified when the email is unknown so both failure
	// paths do the same Argon2 work.
	dummyHash string
}

// NewCredentialValidator creates a validator backed by dir.
func NewCredentialValidator(dir UserDirectory) (*CredentialValidator, error) {
	dummy, err := HashPassword("itemkeeper-unknown-user")
	if err != nil {
		return nil, fmt.Errorf("preparing credential validator: %w", err)
	}
	return &CredentialValidator{dir: dir, dummyHash: dummy}, nil
}

// Validate returns the public identity for email when password matches.
//
// Both inputs must be non-empty (ErrMissingCredentials). An unknown email
// and a wrong password both return ErrInvalidCredentials. Directory
// failures are returned wrapped.
func (v *CredentialValidator) Validate(ctx context.Context, email, password string) (Identity, error) {
	if email == "" || password == "" {
		return Identity{}, ErrMissingCredentials
	}

	user, err := v.dir.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, v.dummyHash) //nolint:errcheck // timing only
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return Identity{}, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}

	return user.Identity(), nil
}
