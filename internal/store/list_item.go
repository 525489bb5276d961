package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/model"
)

// ListItemStore persists list items and materializes them into the
// EnrichedListItem shape shared by REST responses and live updates.
type ListItemStore struct {
	db DBTX
}

func NewListItemStore(db DBTX) *ListItemStore {
	return &ListItemStore{db: db}
}

func scanListItem(scanner interface{ Scan(...any) error }) (*model.ListItem, error) {
	var li model.ListItem
	var checked int
	var checkedAt sql.NullTime
	err := scanner.Scan(
		&li.ID, &li.ListID, &li.ItemID, &li.Quantity, &li.Notes,
		&checked, &li.SortOrder, &li.AddedAt, &checkedAt,
	)
	if err != nil {
		return nil, err
	}
	li.IsChecked = checked != 0
	if checkedAt.Valid {
		li.CheckedAt = &checkedAt.Time
	}
	return &li, nil
}

const listItemCols = `id, list_id, item_id, quantity, notes, is_checked, sort_order, added_at, checked_at`

// Get returns the list item only if it belongs to listID.
func (s *ListItemStore) Get(listID, id int64) (*model.ListItem, error) {
	row := s.db.QueryRow(`SELECT `+listItemCols+` FROM list_items WHERE id = ? AND list_id = ?`, id, listID)
	li, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list item: %w", err)
	}
	return li, nil
}

func (s *ListItemStore) GetByItem(listID, itemID int64) (*model.ListItem, error) {
	row := s.db.QueryRow(`SELECT `+listItemCols+` FROM list_items WHERE list_id = ? AND item_id = ?`, listID, itemID)
	li, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list item by item: %w", err)
	}
	return li, nil
}

// MaxSortOrder returns the highest sort_order among unchecked items, or 0.
func (s *ListItemStore) MaxSortOrder(listID int64) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(sort_order) FROM list_items WHERE list_id = ? AND is_checked = 0`,
		listID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max sort order: %w", err)
	}
	return int(max.Int64), nil
}

// Insert adds a new active row. A concurrent insert of the same
// (list, item) pair surfaces as ErrAlreadyOnList.
func (s *ListItemStore) Insert(listID, itemID int64, quantity, notes string, sortOrder int) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO list_items (list_id, item_id, quantity, notes, sort_order) VALUES (?, ?, ?, ?, ?)`,
		listID, itemID, quantity, notes, sortOrder,
	)
	if database.IsUniqueViolation(err) {
		return 0, ErrAlreadyOnList
	}
	if err != nil {
		return 0, fmt.Errorf("insert list item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Reactivate flips a checked row back to active with fresh quantity/notes.
// A row that is already active is left untouched and reported as false.
func (s *ListItemStore) Reactivate(id int64, quantity, notes string, sortOrder int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE list_items SET is_checked = 0, checked_at = NULL, quantity = ?, notes = ?, sort_order = ?
		 WHERE id = ? AND is_checked = 1`,
		quantity, notes, sortOrder, id,
	)
	if err != nil {
		return false, fmt.Errorf("reactivate list item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *ListItemStore) SetNotes(id int64, notes string) error {
	_, err := s.db.Exec(`UPDATE list_items SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return fmt.Errorf("set notes: %w", err)
	}
	return nil
}

// ListItemChanges is a partial update. Nil fields are left unchanged.
type ListItemChanges struct {
	Quantity  *string
	Notes     *string
	IsChecked *bool
	CheckedAt *time.Time
	SortOrder *int
}

func (c ListItemChanges) Empty() bool {
	return c.Quantity == nil && c.Notes == nil && c.IsChecked == nil && c.SortOrder == nil
}

func (s *ListItemStore) Update(id int64, c ListItemChanges) error {
	if c.Empty() {
		return nil
	}

	var sets []string
	var args []any
	if c.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *c.Quantity)
	}
	if c.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *c.Notes)
	}
	if c.IsChecked != nil {
		sets = append(sets, "is_checked = ?", "checked_at = ?")
		var checkedAt any
		if *c.IsChecked && c.CheckedAt != nil {
			checkedAt = c.CheckedAt.UTC()
		}
		args = append(args, boolToInt(*c.IsChecked), checkedAt)
	}
	if c.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *c.SortOrder)
	}
	args = append(args, id)

	_, err := s.db.Exec(`UPDATE list_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update list item: %w", err)
	}
	return nil
}

func (s *ListItemStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM list_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list item: %w", err)
	}
	return nil
}

// DeleteChecked removes every checked row on the list and returns their ids.
func (s *ListItemStore) DeleteChecked(listID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM list_items WHERE list_id = ? AND is_checked = 1 ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("select checked: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan checked id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select checked: %w", err)
	}

	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// --- Materializer ---

const enrichedSelect = `SELECT
	li.id, li.list_id, li.item_id, li.quantity, li.notes, li.is_checked, li.sort_order, li.added_at, li.checked_at,
	i.name, i.category_id, i.created_by,
	c.name, c.color, c.is_default, c.user_id
FROM list_items li
JOIN items i ON i.id = li.item_id
JOIN categories c ON c.id = i.category_id`

func scanEnriched(scanner interface{ Scan(...any) error }) (*model.EnrichedListItem, error) {
	var e model.EnrichedListItem
	var checked, isDefault int
	var checkedAt sql.NullTime
	var createdBy, catUserID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.ListID, &e.ItemID, &e.Quantity, &e.Notes, &checked, &e.SortOrder, &e.AddedAt, &checkedAt,
		&e.Item.Name, &e.Item.CategoryID, &createdBy,
		&e.Category.Name, &e.Category.Color, &isDefault, &catUserID,
	)
	if err != nil {
		return nil, err
	}

	e.IsChecked = checked != 0
	if checkedAt.Valid {
		e.CheckedAt = &checkedAt.Time
	}
	e.Item.ID = e.ItemID
	e.Item.CreatedBy = nullableInt64(createdBy)
	e.Category.ID = e.Item.CategoryID
	e.Category.IsDefault = isDefault != 0
	e.Category.UserID = nullableInt64(catUserID)
	return &e, nil
}

// Enrich materializes a single list item, or returns nil if it is gone.
func (s *ListItemStore) Enrich(id int64) (*model.EnrichedListItem, error) {
	row := s.db.QueryRow(enrichedSelect+` WHERE li.id = ?`, id)
	e, err := scanEnriched(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrich list item: %w", err)
	}
	return e, nil
}

// EnrichMany materializes the given rows in list order. Missing ids are skipped.
func (s *ListItemStore) EnrichMany(ids []int64) ([]model.EnrichedListItem, error) {
	if len(ids) == 0 {
		return []model.EnrichedListItem{}, nil
	}
	return s.queryEnriched(
		enrichedSelect+` WHERE li.id IN (`+placeholders(len(ids))+`) ORDER BY li.sort_order ASC, li.id ASC`,
		int64Args(ids)...,
	)
}

// ListEnriched materializes a whole list: active items first by sort order,
// then checked items.
func (s *ListItemStore) ListEnriched(listID int64) ([]model.EnrichedListItem, error) {
	return s.queryEnriched(
		enrichedSelect+` WHERE li.list_id = ? ORDER BY li.is_checked ASC, li.sort_order ASC, li.added_at ASC, li.id ASC`,
		listID,
	)
}

// ListEnrichedByItem materializes every row, on any list, that references
// the library item.
func (s *ListItemStore) ListEnrichedByItem(itemID int64) ([]model.EnrichedListItem, error) {
	return s.queryEnriched(enrichedSelect+` WHERE li.item_id = ? ORDER BY li.list_id ASC, li.id ASC`, itemID)
}

func (s *ListItemStore) queryEnriched(query string, args ...any) ([]model.EnrichedListItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query list items: %w", err)
	}
	defer rows.Close()

	items := []model.EnrichedListItem{}
	for rows.Next() {
		e, err := scanEnriched(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
