package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nomnom/internal/model"
)

type CategoryStore struct {
	db DBTX
}

func NewCategoryStore(db DBTX) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var isDefault int
	var userID sql.NullInt64
	err := scanner.Scan(&c.ID, &c.Name, &c.Color, &isDefault, &userID)
	if err != nil {
		return nil, err
	}
	c.IsDefault = isDefault != 0
	c.UserID = nullableInt64(userID)
	return &c, nil
}

const categoryCols = `id, name, color, is_default, user_id`

func (s *CategoryStore) GetByID(id int64) (*model.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryCols+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// GetVisible returns the category if it is a global default or owned by
// userID. Other users' categories resolve to ErrCategoryNotFound.
func (s *CategoryStore) GetVisible(id, userID int64) (*model.Category, error) {
	row := s.db.QueryRow(
		`SELECT `+categoryCols+` FROM categories WHERE id = ? AND (user_id IS NULL OR user_id = ?)`,
		id, userID,
	)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visible category: %w", err)
	}
	return c, nil
}

// GetDefaultByName looks up a global default category by name.
func (s *CategoryStore) GetDefaultByName(name string) (*model.Category, error) {
	row := s.db.QueryRow(
		`SELECT `+categoryCols+` FROM categories WHERE is_default = 1 AND user_id IS NULL AND name = ? COLLATE NOCASE`,
		name,
	)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) ListVisible(userID int64) ([]model.Category, error) {
	rows, err := s.db.Query(
		`SELECT `+categoryCols+` FROM categories WHERE user_id IS NULL OR user_id = ? ORDER BY is_default DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) Create(name, color string, userID int64) (*model.Category, error) {
	result, err := s.db.Exec(
		`INSERT INTO categories (name, color, is_default, user_id) VALUES (?, ?, 0, ?)`,
		name, color, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// Update changes a visible category. Defaults are shared by everyone, so
// only their color may change; a name change fails with ErrDefaultCategory.
func (s *CategoryStore) Update(id, userID int64, name, color *string) (*model.Category, error) {
	c, err := s.GetVisible(id, userID)
	if err != nil {
		return nil, err
	}
	if c.UserID == nil && name != nil && *name != c.Name {
		return nil, ErrDefaultCategory
	}

	if name != nil {
		c.Name = *name
	}
	if color != nil {
		c.Color = *color
	}
	_, err = s.db.Exec(`UPDATE categories SET name = ?, color = ? WHERE id = ?`, c.Name, c.Color, id)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// Delete removes one of userID's own categories, moving its items to
// fallbackID first. Run it in a transaction.
func (s *CategoryStore) Delete(id, userID, fallbackID int64) error {
	c, err := s.GetVisible(id, userID)
	if err != nil {
		return err
	}
	if c.UserID == nil {
		return ErrDefaultCategory
	}

	if _, err := s.db.Exec(`UPDATE items SET category_id = ? WHERE category_id = ?`, fallbackID, id); err != nil {
		return fmt.Errorf("reassign items: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ReassignOwned moves every item in one of userID's categories to
// fallbackID. Items reference categories without a cascade, so this runs
// before the user's categories go away.
func (s *CategoryStore) ReassignOwned(userID, fallbackID int64) error {
	_, err := s.db.Exec(
		`UPDATE items SET category_id = ? WHERE category_id IN (SELECT id FROM categories WHERE user_id = ?)`,
		fallbackID, userID,
	)
	if err != nil {
		return fmt.Errorf("reassign user categories: %w", err)
	}
	return nil
}
