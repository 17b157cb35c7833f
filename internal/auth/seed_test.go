package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestSeedDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewUserDirectory(testDB(t))
	logger := slog.New(slog.DiscardHandler)

	preHashed, err := cheapParams.Hash("admin-pass")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	seeds := []Seed{
		{ID: "1", Email: "user@demo.com", Password: "user123", Role: RoleUser},
		{ID: "2", Email: "admin@demo.com", PasswordHash: preHashed, Role: RoleAdmin},
	}

	created, err := SeedDirectory(ctx, dir, seeds, logger)
	if err != nil {
		t.Fatalf("SeedDirectory() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	admin, err := dir.FindByEmail(ctx, "admin@demo.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if admin.ID != "2" || admin.Role != RoleAdmin || admin.PasswordHash != preHashed {
		t.Errorf("admin = %+v", admin)
	}

	user, err := dir.FindByEmail(ctx, "user@demo.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	ok, err := VerifyPassword("user123", user.PasswordHash)
	if err != nil || !ok {
		t.Errorf("seeded password does not verify: ok=%v err=%v", ok, err)
	}

	again, err := SeedDirectory(ctx, dir, seeds, logger)
	if err != nil {
		t.Fatalf("second SeedDirectory() error = %v", err)
	}
	if again != 0 {
		t.Errorf("second run created %d, want 0", again)
	}
}

func TestSeedDirectory_IDConflict(t *testing.T) {
	ctx := context.Background()
	dir := NewUserDirectory(testDB(t))
	logger := slog.New(slog.DiscardHandler)
	seedTestUser(t, dir, "1", "first@demo.com", "first-pass", RoleUser)

	created, err := SeedDirectory(ctx, dir, []Seed{
		{ID: "1", Email: "renamed@demo.com", Password: "user123", Role: RoleUser},
	}, logger)
	if !errors.Is(err, ErrSeedIDConflict) {
		t.Fatalf("SeedDirectory() error = %v, want ErrSeedIDConflict", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}

	count, err := dir.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
