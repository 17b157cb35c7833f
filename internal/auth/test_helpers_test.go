package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/itemkeeper/internal/infrastructure/database"
	"github.com/nerrad567/itemkeeper/migrations"
)

// cheapParams keeps test hashes fast. Verification reads parameters from
// the hash, so these interoperate with production code paths.
var cheapParams = PasswordParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// testDB creates a migrated SQLite database in a temp dir.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// seedTestUser inserts a user with a cheap hash of password and returns it.
func seedTestUser(t *testing.T, dir UserDirectory, id, email, password string, role Role) *User {
	t.Helper()

	hash, err := cheapParams.Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{ID: id, Email: email, PasswordHash: hash, Role: role}
	if err := dir.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}
