package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the owner-scoped store. Every method filters on ownerID;
// none of them can reach another owner's items.
type Repository interface {
	// List returns the owner's items in insertion order.
	List(ctx context.Context, ownerID string, page Page) ([]Item, error)
	Get(ctx context.Context, id, ownerID string) (*Item, error)
	Create(ctx context.Context, ownerID string, in Input) (*Item, error)
	// Update merges the provided fields and returns the stored result.
	Update(ctx context.Context, id, ownerID string, p Patch) (*Item, error)
	// Delete removes the item and returns it as it was.
	Delete(ctx context.Context, id, ownerID string) (*Item, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed item store.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectColumns = "SELECT id, owner_id, name, description, created_at, updated_at FROM items"

// List returns the owner's items ordered by insertion.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string, page Page) ([]Item, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	limit := page.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := max(page.Offset, 0)

	rows, err := r.db.QueryContext(ctx,
		selectColumns+" WHERE owner_id = ? ORDER BY seq ASC LIMIT ? OFFSET ?",
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// Get returns the item matching both id and owner.
func (r *SQLiteRepository) Get(ctx context.Context, id, ownerID string) (*Item, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	return scanItem(r.db.QueryRowContext(ctx,
		selectColumns+" WHERE id = ? AND owner_id = ?", id, ownerID))
}

// Create validates in and inserts a new item owned by ownerID.
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, in Input) (*Item, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if err := in.Normalise(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	it := &Item{
		ID:          "itm-" + uuid.NewString(),
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, owner_id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.OwnerID, it.Name, it.Description,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return it, nil
}

// Update validates p, then reads, merges and writes inside one transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id, ownerID string, p Patch) (*Item, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if err := p.Normalise(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	it, err := scanItem(tx.QueryRowContext(ctx,
		selectColumns+" WHERE id = ? AND owner_id = ?", id, ownerID))
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Description != nil {
		it.Description = p.Description
	}
	it.UpdatedAt = r.now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		it.Name, it.Description, it.UpdatedAt.Format(time.RFC3339Nano), id, ownerID,
	); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}
	return it, nil
}

// Delete removes the item matching id and owner and returns it.
func (r *SQLiteRepository) Delete(ctx context.Context, id, ownerID string) (*Item, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	it, err := scanItem(tx.QueryRowContext(ctx,
		selectColumns+" WHERE id = ? AND owner_id = ?", id, ownerID))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM items WHERE id = ? AND owner_id = ?", id, ownerID,
	); err != nil {
		return nil, fmt.Errorf("deleting item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item delete: %w", err)
	}
	return it, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var it Item
	var desc sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&it.ID, &it.OwnerID, &it.Name, &desc, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	if desc.Valid {
		it.Description = &desc.String
	}

	var err error
	if it.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing item created_at %q: %w", createdAt, err)
	}
	if it.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing item updated_at %q: %w", updatedAt, err)
	}
	return &it, nil
}
