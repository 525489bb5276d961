package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so a store can run inside
// a caller's transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Error kinds. Every store error a caller is expected to handle unwraps to
// one of these.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// Error is a client-safe message tagged with its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

var (
	ErrListNotFound     = &Error{ErrNotFound, "list not found"}
	ErrListItemNotFound = &Error{ErrNotFound, "list item not found"}
	ErrItemNotFound     = &Error{ErrNotFound, "item not found"}
	ErrCategoryNotFound = &Error{ErrNotFound, "category not found"}
	ErrMenuNotFound     = &Error{ErrNotFound, "menu not found"}
	ErrUserNotFound     = &Error{ErrNotFound, "user not found"}
	ErrAccessDenied     = &Error{ErrForbidden, "access denied"}
	ErrEditRequired     = &Error{ErrForbidden, "edit permission required"}
	ErrOwnerRequired    = &Error{ErrForbidden, "only the list owner can do that"}
	ErrDefaultCategory  = &Error{ErrForbidden, "default categories can only change color"}
	ErrAlreadyOnList    = &Error{ErrConflict, "item already on this list"}
	ErrUsernameTaken    = &Error{ErrConflict, "username already taken"}
	ErrItemNameTaken    = &Error{ErrConflict, "you already have an item with that name"}
)

// InTx runs fn inside a transaction, committing only if fn returns nil.
func InTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
