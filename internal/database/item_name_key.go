package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dukerupert/nomnom/internal/grocery"
)

// SQLite's lower() only folds ASCII, so item name matching uses a key
// computed in Go and stored alongside the name.
func init() {
	goose.AddNamedMigrationContext("00004_item_name_key.go", upItemNameKey, downItemNameKey)
}

func upItemNameKey(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE items ADD COLUMN name_key TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("add name_key: %w", err)
	}

	type itemRow struct {
		id    int64
		name  string
		owner sql.NullInt64
	}
	rows, err := tx.QueryContext(ctx, `SELECT id, name, created_by FROM items ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read items: %w", err)
	}
	var items []itemRow
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(&r.id, &r.name, &r.owner); err != nil {
			rows.Close()
			return fmt.Errorf("scan item: %w", err)
		}
		items = append(items, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read items: %w", err)
	}

	// Names that differed only in non-ASCII case now collide. The older row
	// keeps the key; later ones get a suffix no lookup can produce.
	seen := make(map[string]bool, len(items))
	for _, r := range items {
		key := grocery.NormalizeName(r.name)
		scope := fmt.Sprintf("%d/%t/%s", r.owner.Int64, r.owner.Valid, key)
		if seen[scope] {
			key = fmt.Sprintf("%s\x00%d", key, r.id)
		}
		seen[scope] = true

		if _, err := tx.ExecContext(ctx, `UPDATE items SET name_key = ? WHERE id = ?`, key, r.id); err != nil {
			return fmt.Errorf("backfill item %d: %w", r.id, err)
		}
	}

	for _, stmt := range []string{
		`DROP INDEX idx_items_name_owner`,
		`DROP INDEX idx_items_name_system`,
		`CREATE UNIQUE INDEX idx_items_key_owner ON items (name_key, created_by) WHERE created_by IS NOT NULL`,
		`CREATE UNIQUE INDEX idx_items_key_system ON items (name_key) WHERE created_by IS NULL`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild item indexes: %w", err)
		}
	}
	return nil
}

func downItemNameKey(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP INDEX idx_items_key_owner`,
		`DROP INDEX idx_items_key_system`,
		`ALTER TABLE items DROP COLUMN name_key`,
		`CREATE UNIQUE INDEX idx_items_name_owner ON items (lower(name), created_by) WHERE created_by IS NOT NULL`,
		`CREATE UNIQUE INDEX idx_items_name_system ON items (lower(name)) WHERE created_by IS NULL`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restore item indexes: %w", err)
		}
	}
	return nil
}
