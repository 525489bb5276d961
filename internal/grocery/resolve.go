package grocery

import (
	"fmt"

	"github.com/dukerupert/nomnom/internal/model"
)

// Library is the slice of the item library needed to resolve items for a user.
type Library interface {
	FindOwnedByName(userID int64, name string) (*model.Item, error)
	Create(name string, categoryID int64, createdBy int64) (*model.Item, error)
}

// ResolveForUser returns the item a user's list should reference for src.
// Items the user owns are returned as-is. System items resolve to the user's
// own item of the same name, which is cloned from the system item if the
// user has none yet. Another user's private item resolves to nil.
func ResolveForUser(lib Library, src *model.Item, userID int64) (*model.Item, error) {
	if src.OwnedBy(userID) {
		return src, nil
	}
	if !src.IsSystem() {
		return nil, nil
	}

	own, err := lib.FindOwnedByName(userID, src.Name)
	if err != nil {
		return nil, fmt.Errorf("find owned item: %w", err)
	}
	if own != nil {
		return own, nil
	}

	clone, err := lib.Create(src.Name, src.CategoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("clone item %d: %w", src.ID, err)
	}
	if clone == nil {
		return nil, fmt.Errorf("clone item %d: no row returned", src.ID)
	}
	return clone, nil
}

// FindOrCreate returns the user's item named name, creating it in categoryID
// when absent. Only the user's own items are considered.
func FindOrCreate(lib Library, userID int64, name string, categoryID int64) (*model.Item, bool, error) {
	own, err := lib.FindOwnedByName(userID, name)
	if err != nil {
		return nil, false, fmt.Errorf("find owned item: %w", err)
	}
	if own != nil {
		return own, false, nil
	}

	item, err := lib.Create(name, categoryID, userID)
	if err != nil {
		return nil, false, fmt.Errorf("create item: %w", err)
	}
	if item == nil {
		return nil, false, fmt.Errorf("create item %q: no row returned", name)
	}
	return item, true, nil
}
