package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
)

// ItemStore is the item library: per-user items plus the system catalog.
type ItemStore struct {
	db DBTX
}

func NewItemStore(db DBTX) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var createdBy sql.NullInt64
	err := scanner.Scan(&it.ID, &it.Name, &it.CategoryID, &createdBy)
	if err != nil {
		return nil, err
	}
	it.CreatedBy = nullableInt64(createdBy)
	return &it, nil
}

const itemCols = `id, name, category_id, created_by`

func (s *ItemStore) GetByID(id int64) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// FindOwnedByName matches name case-insensitively among userID's own items.
// System items and other users' items never match.
func (s *ItemStore) FindOwnedByName(userID int64, name string) (*model.Item, error) {
	row := s.db.QueryRow(
		`SELECT `+itemCols+` FROM items WHERE created_by = ? AND name_key = ?`,
		userID, grocery.NormalizeName(name),
	)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item by name: %w", err)
	}
	return it, nil
}

// Create inserts an item owned by createdBy. If a concurrent request created
// the same name first, the existing row is returned.
func (s *ItemStore) Create(name string, categoryID int64, createdBy int64) (*model.Item, error) {
	result, err := s.db.Exec(
		`INSERT INTO items (name, name_key, category_id, created_by) VALUES (?, ?, ?, ?)`,
		name, grocery.NormalizeName(name), categoryID, createdBy,
	)
	if database.IsUniqueViolation(err) {
		existing, ferr := s.FindOwnedByName(createdBy, name)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, fmt.Errorf("insert item %q: name taken but no owned match: %w", name, err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// UpdateCategory changes the category of the library item, which affects
// every list referencing it.
func (s *ItemStore) UpdateCategory(id, categoryID int64) error {
	_, err := s.db.Exec(`UPDATE items SET category_id = ? WHERE id = ?`, categoryID, id)
	if err != nil {
		return fmt.Errorf("update item category: %w", err)
	}
	return nil
}

// ListForUser returns the user's library view: their own items plus system
// items they have not shadowed with an item of the same name.
func (s *ItemStore) ListForUser(userID int64) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM items i
		 WHERE i.created_by = ?
		    OR (i.created_by IS NULL AND NOT EXISTS (
		        SELECT 1 FROM items o WHERE o.created_by = ? AND o.name_key = i.name_key))
		 ORDER BY i.name_key ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list library items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// GetOwned returns the item only if userID created it.
func (s *ItemStore) GetOwned(id, userID int64) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ? AND created_by = ?`, id, userID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owned item: %w", err)
	}
	return it, nil
}

// Rename changes the item's display name and match key. It fails with
// ErrItemNameTaken when the owner already has an item with that name.
func (s *ItemStore) Rename(id int64, name string) error {
	_, err := s.db.Exec(
		`UPDATE items SET name = ?, name_key = ? WHERE id = ?`,
		name, grocery.NormalizeName(name), id,
	)
	if database.IsUniqueViolation(err) {
		return ErrItemNameTaken
	}
	if err != nil {
		return fmt.Errorf("rename item: %w", err)
	}
	return nil
}

// Delete removes the item. List rows referencing it go with it.
func (s *ItemStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
