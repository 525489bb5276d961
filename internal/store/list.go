package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nomnom/internal/model"
)

// ListStore holds list ownership and sharing, and gates access to list items.
type ListStore struct {
	db DBTX
}

func NewListStore(db DBTX) *ListStore {
	return &ListStore{db: db}
}

func scanList(scanner interface{ Scan(...any) error }) (*model.List, error) {
	var l model.List
	err := scanner.Scan(&l.ID, &l.Name, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const listCols = `id, name, owner_id, created_at, updated_at`

func (s *ListStore) Create(name string, ownerID int64) (*model.List, error) {
	result, err := s.db.Exec(`INSERT INTO lists (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ListStore) GetByID(id int64) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// CheckAccess returns the list if userID owns it or holds a share on it.
// With requireEdit, a share must carry edit permission; owners always pass.
// It fails with ErrListNotFound, ErrAccessDenied or ErrEditRequired.
func (s *ListStore) CheckAccess(userID, listID int64, requireEdit bool) (*model.List, error) {
	l, err := s.GetByID(listID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListNotFound
	}
	if l.OwnerID == userID {
		return l, nil
	}

	perm, err := s.SharePermission(listID, userID)
	if err != nil {
		return nil, err
	}
	if perm == "" {
		return nil, ErrAccessDenied
	}
	if requireEdit && perm != model.PermissionEdit {
		return nil, ErrEditRequired
	}
	return l, nil
}

// SharePermission returns the user's share permission, or "" if none.
func (s *ListStore) SharePermission(listID, userID int64) (model.Permission, error) {
	var perm string
	err := s.db.QueryRow(
		`SELECT permission FROM list_shares WHERE list_id = ? AND user_id = ?`,
		listID, userID,
	).Scan(&perm)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get share: %w", err)
	}
	return model.Permission(perm), nil
}

// Share grants or updates a user's access to a list.
func (s *ListStore) Share(listID, userID int64, perm model.Permission) error {
	_, err := s.db.Exec(
		`INSERT INTO list_shares (list_id, user_id, permission) VALUES (?, ?, ?)
		 ON CONFLICT (list_id, user_id) DO UPDATE SET permission = excluded.permission`,
		listID, userID, string(perm),
	)
	if err != nil {
		return fmt.Errorf("share list: %w", err)
	}
	return nil
}

func (s *ListStore) Unshare(listID, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM list_shares WHERE list_id = ? AND user_id = ?`, listID, userID)
	if err != nil {
		return fmt.Errorf("unshare list: %w", err)
	}
	return nil
}

func (s *ListStore) ListShares(listID int64) ([]model.ListShare, error) {
	rows, err := s.db.Query(
		`SELECT ls.list_id, ls.user_id, ls.permission, u.username
		 FROM list_shares ls JOIN users u ON u.id = ls.user_id
		 WHERE ls.list_id = ? ORDER BY u.username ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var shares []model.ListShare
	for rows.Next() {
		var sh model.ListShare
		var perm string
		if err := rows.Scan(&sh.ListID, &sh.UserID, &perm, &sh.Username); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		sh.Permission = model.Permission(perm)
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

// Touch bumps updated_at after a list's items change.
func (s *ListStore) Touch(listID int64) error {
	_, err := s.db.Exec(`UPDATE lists SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, listID)
	if err != nil {
		return fmt.Errorf("touch list: %w", err)
	}
	return nil
}

// ListForUser returns lists the user owns or has been shared, most
// recently updated first.
func (s *ListStore) ListForUser(userID int64) ([]model.List, error) {
	rows, err := s.db.Query(
		`SELECT `+listCols+` FROM lists
		 WHERE owner_id = ?
		    OR id IN (SELECT list_id FROM list_shares WHERE user_id = ?)
		 ORDER BY updated_at DESC, id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

// CheckOwner is CheckAccess for owner-only operations.
func (s *ListStore) CheckOwner(userID, listID int64) (*model.List, error) {
	l, err := s.CheckAccess(userID, listID, false)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != userID {
		return nil, ErrOwnerRequired
	}
	return l, nil
}

func (s *ListStore) Rename(id int64, name string) (*model.List, error) {
	_, err := s.db.Exec(`UPDATE lists SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename list: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the list along with its shares and items.
func (s *ListStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}
