package listitem

import (
	"database/sql"

	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// LibraryInput is a partial update of a library item.
type LibraryInput struct {
	Name       *string
	CategoryID *int64
}

// UpdateLibraryItem renames or recategorizes one of the user's own items.
// Every list row referencing the item is re-sent as item-updated.
func (s *Service) UpdateLibraryItem(userID, itemID int64, in LibraryInput) (*model.Item, error) {
	if in.Name == nil && in.CategoryID == nil {
		return nil, ErrNoUpdates
	}

	own, err := s.items.GetOwned(itemID, userID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, store.ErrItemNotFound
	}

	var name string
	if in.Name != nil {
		name = grocery.CleanName(*in.Name)
		if name == "" {
			return nil, &grocery.ValidationError{Field: "name", Message: "is required"}
		}
		if err := grocery.CheckLength("name", name, grocery.MaxNameLen); err != nil {
			return nil, err
		}
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetVisible(*in.CategoryID, userID); err != nil {
			return nil, err
		}
	}

	err = store.InTx(s.db, func(tx *sql.Tx) error {
		items := store.NewItemStore(tx)
		if in.Name != nil && name != own.Name {
			if err := items.Rename(itemID, name); err != nil {
				return err
			}
		}
		if in.CategoryID != nil {
			return items.UpdateCategory(itemID, *in.CategoryID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.listItems.ListEnrichedByItem(itemID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		s.publish(model.ItemUpdated{ListID: rows[i].ListID, ListItem: &rows[i]})
	}
	return s.items.GetByID(itemID)
}

// DeleteLibraryItem removes one of the user's own items and every list row
// that references it.
func (s *Service) DeleteLibraryItem(userID, itemID int64) error {
	own, err := s.items.GetOwned(itemID, userID)
	if err != nil {
		return err
	}
	if own == nil {
		return store.ErrItemNotFound
	}

	var removed []model.EnrichedListItem
	err = store.InTx(s.db, func(tx *sql.Tx) error {
		var err error
		removed, err = store.NewListItemStore(tx).ListEnrichedByItem(itemID)
		if err != nil {
			return err
		}
		return store.NewItemStore(tx).Delete(itemID)
	})
	if err != nil {
		return err
	}

	for _, row := range removed {
		s.publish(model.ItemRemoved{ListID: row.ListID, ListItemID: row.ID})
	}
	return nil
}
