package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, username, password_hash, created_at`

func (s *UserStore) Create(username, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if database.IsUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername matches case-insensitively.
func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ? COLLATE NOCASE`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) SetPassword(id int64, passwordHash string) error {
	result, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user and everything they own. Library items still on
// other users' lists survive as system items, or are folded into the
// system item of the same name. Items in the user's own categories must
// already have been moved out (see CategoryStore.ReassignOwned). Run it in a
// transaction.
func (s *UserStore) Delete(id int64) error {
	stmts := []string{
		// Point rows at the matching system item unless the list already has it.
		`UPDATE OR IGNORE list_items SET item_id = (
		     SELECT s.id FROM items s JOIN items u ON u.name_key = s.name_key
		     WHERE u.id = list_items.item_id AND s.created_by IS NULL)
		 WHERE item_id IN (
		     SELECT u.id FROM items u
		     WHERE u.created_by = ?1 AND EXISTS (
		         SELECT 1 FROM items s WHERE s.created_by IS NULL AND s.name_key = u.name_key))`,
		`DELETE FROM items WHERE created_by = ?1 AND EXISTS (
		     SELECT 1 FROM items s WHERE s.created_by IS NULL AND s.name_key = items.name_key)`,
		`DELETE FROM items WHERE created_by = ?1 AND id NOT IN (
		     SELECT li.item_id FROM list_items li JOIN lists l ON l.id = li.list_id WHERE l.owner_id != ?1)`,
		`UPDATE items SET created_by = NULL WHERE created_by = ?1`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt, id); err != nil {
			return fmt.Errorf("release user items: %w", err)
		}
	}

	result, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
