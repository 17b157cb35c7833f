package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Seed is a directory entry to create at startup. PasswordHash wins over
// Password when both are set.
type Seed struct {
	ID           string
	Email        string
	Password     string
	PasswordHash string
	Role         Role
}

// ErrSeedIDConflict is returned when a seed's id belongs to an entry with a
// different email.
var ErrSeedIDConflict = errors.New("seed user id already used by another email")

// SeedDirectory creates each seed whose email is not yet in dir.
// Existing entries are left untouched. Returns the number created.
func SeedDirectory(ctx context.Context, dir UserDirectory, seeds []Seed, logger *slog.Logger) (int, error) {
	created := 0
	for _, s := range seeds {
		_, err := dir.FindByEmail(ctx, s.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, fmt.Errorf("checking seed user %s: %w", s.ID, err)
		}

		if s.ID != "" {
			_, err = dir.FindByID(ctx, s.ID)
			if err == nil {
				return created, fmt.Errorf("seed user %s: %w", s.ID, ErrSeedIDConflict)
			}
			if !errors.Is(err, ErrUserNotFound) {
				return created, fmt.Errorf("checking seed user %s: %w", s.ID, err)
			}
		}

		hash := s.PasswordHash
		if hash == "" {
			hash, err = HashPassword(s.Password)
			if err != nil {
				return created, fmt.Errorf("hashing seed password for %s: %w", s.ID, err)
			}
		}

		user := &User{ID: s.ID, Email: s.Email, PasswordHash: hash, Role: s.Role}
		if err := dir.Create(ctx, user); err != nil {
			return created, fmt.Errorf("creating seed user %s: %w", s.ID, err)
		}
		created++

		logger.Info("seed user created", "user_id", user.ID, "role", string(user.Role))
	}
	return created, nil
}
