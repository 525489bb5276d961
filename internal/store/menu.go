package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nomnom/internal/model"
)

type MenuStore struct {
	db *sql.DB
}

func NewMenuStore(db *sql.DB) *MenuStore {
	return &MenuStore{db: db}
}

func scanMenu(scanner interface{ Scan(...any) error }) (*model.Menu, error) {
	var m model.Menu
	err := scanner.Scan(&m.ID, &m.Name, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt, &m.ItemCount)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const menuSelect = `SELECT m.id, m.name, m.created_by, m.created_at, m.updated_at,
	(SELECT COUNT(*) FROM menu_items mi WHERE mi.menu_id = m.id)
FROM menus m`

// Create inserts the menu and its items in one transaction.
func (s *MenuStore) Create(name string, ownerID int64, itemIDs []int64) (*model.Menu, error) {
	var menuID int64
	err := InTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`INSERT INTO menus (name, created_by) VALUES (?, ?)`, name, ownerID)
		if err != nil {
			return fmt.Errorf("insert menu: %w", err)
		}
		menuID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return insertMenuItems(tx, menuID, itemIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetOwned(menuID, ownerID)
}

// Update renames the menu and/or replaces its items in one transaction.
// A nil name or nil itemIDs leaves that part unchanged.
func (s *MenuStore) Update(id, ownerID int64, name *string, itemIDs []int64) (*model.Menu, error) {
	existing, err := s.GetOwned(id, ownerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrMenuNotFound
	}

	err = InTx(s.db, func(tx *sql.Tx) error {
		if name != nil {
			if _, err := tx.Exec(`UPDATE menus SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, *name, id); err != nil {
				return fmt.Errorf("rename menu: %w", err)
			}
		} else {
			if _, err := tx.Exec(`UPDATE menus SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
				return fmt.Errorf("touch menu: %w", err)
			}
		}
		if itemIDs != nil {
			if _, err := tx.Exec(`DELETE FROM menu_items WHERE menu_id = ?`, id); err != nil {
				return fmt.Errorf("clear menu items: %w", err)
			}
			return insertMenuItems(tx, id, itemIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOwned(id, ownerID)
}

func insertMenuItems(tx *sql.Tx, menuID int64, itemIDs []int64) error {
	for _, itemID := range itemIDs {
		if _, err := tx.Exec(
			`INSERT INTO menu_items (menu_id, item_id) VALUES (?, ?) ON CONFLICT (menu_id, item_id) DO NOTHING`,
			menuID, itemID,
		); err != nil {
			return fmt.Errorf("insert menu item %d: %w", itemID, err)
		}
	}
	return nil
}

// GetOwned returns the menu if ownerID created it, else nil.
func (s *MenuStore) GetOwned(id, ownerID int64) (*model.Menu, error) {
	row := s.db.QueryRow(menuSelect+` WHERE m.id = ? AND m.created_by = ?`, id, ownerID)
	m, err := scanMenu(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu: %w", err)
	}
	return m, nil
}

func (s *MenuStore) ListOwned(ownerID int64) ([]model.Menu, error) {
	rows, err := s.db.Query(menuSelect+` WHERE m.created_by = ? ORDER BY m.name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	defer rows.Close()

	menus := []model.Menu{}
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu: %w", err)
		}
		menus = append(menus, *m)
	}
	return menus, rows.Err()
}

// ItemIDs returns the library item ids in the menu.
func (s *MenuStore) ItemIDs(menuID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT item_id FROM menu_items WHERE menu_id = ? ORDER BY id ASC`, menuID)
	if err != nil {
		return nil, fmt.Errorf("menu item ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan menu item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Items returns the menu's items joined with their library item and category.
func (s *MenuStore) Items(menuID int64) ([]model.MenuItem, error) {
	rows, err := s.db.Query(
		`SELECT mi.id, mi.menu_id, mi.item_id, i.name, i.category_id, i.created_by,
		        c.name, c.color, c.is_default, c.user_id
		 FROM menu_items mi
		 JOIN items i ON i.id = mi.item_id
		 JOIN categories c ON c.id = i.category_id
		 WHERE mi.menu_id = ?
		 ORDER BY mi.id ASC`,
		menuID,
	)
	if err != nil {
		return nil, fmt.Errorf("menu items: %w", err)
	}
	defer rows.Close()

	items := []model.MenuItem{}
	for rows.Next() {
		var mi model.MenuItem
		var createdBy, catUserID sql.NullInt64
		var isDefault int
		if err := rows.Scan(
			&mi.ID, &mi.MenuID, &mi.ItemID, &mi.Item.Name, &mi.Item.CategoryID, &createdBy,
			&mi.Category.Name, &mi.Category.Color, &isDefault, &catUserID,
		); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		mi.Item.ID = mi.ItemID
		mi.Item.CreatedBy = nullableInt64(createdBy)
		mi.Category.ID = mi.Item.CategoryID
		mi.Category.IsDefault = isDefault != 0
		mi.Category.UserID = nullableInt64(catUserID)
		items = append(items, mi)
	}
	return items, rows.Err()
}

func (s *MenuStore) Delete(id, ownerID int64) error {
	result, err := s.db.Exec(`DELETE FROM menus WHERE id = ? AND created_by = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete menu: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrMenuNotFound
	}
	return nil
}
