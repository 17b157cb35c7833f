// Package database provides SQLite connectivity and schema migrations.
//
// The pool holds a single connection. Writes are therefore serialised,
// which is what the item store relies on for id uniqueness and
// last-writer-wins updates.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
