// Package listitem applies mutations to the items on a list and publishes
// the resulting state to the list's live-update subscribers.
package listitem

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// Broadcaster delivers an event to every connection subscribed to its list.
type Broadcaster interface {
	Publish(ev model.ListEvent)
}

type Service struct {
	db          *sql.DB
	lists       *store.ListStore
	categories  *store.CategoryStore
	items       *store.ItemStore
	listItems   *store.ListItemStore
	menus       *store.MenuStore
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(db *sql.DB, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		lists:       store.NewListStore(db),
		categories:  store.NewCategoryStore(db),
		items:       store.NewItemStore(db),
		listItems:   store.NewListItemStore(db),
		menus:       store.NewMenuStore(db),
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// AddInput is a request to put a named item on a list. A zero CategoryID
// lets the name pick a default category.
type AddInput struct {
	Name       string
	CategoryID int64
	Quantity   string
	Notes      string
}

// AddItem puts a library item on the list, creating the library item for the
// user if needed. A checked row for the same item is reactivated instead of
// duplicated; an active row fails with store.ErrAlreadyOnList. created is
// false for reactivations.
func (s *Service) AddItem(userID, listID int64, in AddInput) (item *model.EnrichedListItem, created bool, err error) {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return nil, false, err
	}

	name := grocery.CleanName(in.Name)
	if name == "" {
		return nil, false, &grocery.ValidationError{Field: "name", Message: "is required"}
	}
	if err := validateFields(name, in.Quantity, in.Notes); err != nil {
		return nil, false, err
	}
	quantity := grocery.OrDefault(in.Quantity, model.DefaultQuantity)
	notes := grocery.OrDefault(in.Notes, model.DefaultNotes)

	category, err := s.resolveCategory(userID, name, in.CategoryID)
	if err != nil {
		return nil, false, err
	}

	var listItemID int64
	err = store.InTx(s.db, func(tx *sql.Tx) error {
		items := store.NewItemStore(tx)
		listItems := store.NewListItemStore(tx)

		libItem, _, err := grocery.FindOrCreate(items, userID, name, category.ID)
		if err != nil {
			return err
		}

		existing, err := listItems.GetByItem(listID, libItem.ID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.IsChecked {
			return store.ErrAlreadyOnList
		}

		max, err := listItems.MaxSortOrder(listID)
		if err != nil {
			return err
		}

		if existing != nil {
			ok, err := listItems.Reactivate(existing.ID, quantity, notes, max+1)
			if err != nil {
				return err
			}
			if !ok {
				return store.ErrAlreadyOnList
			}
			listItemID = existing.ID
		} else {
			listItemID, err = listItems.Insert(listID, libItem.ID, quantity, notes, max+1)
			if err != nil {
				return err
			}
			created = true
		}

		return store.NewListStore(tx).Touch(listID)
	})
	if err != nil {
		return nil, false, err
	}

	item, err = s.listItems.Enrich(listItemID)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, store.ErrListItemNotFound
	}

	if created {
		s.publish(model.ItemAdded{ListID: listID, ListItem: item})
	} else {
		s.publish(model.ItemUpdated{ListID: listID, ListItem: item})
	}
	return item, created, nil
}

func (s *Service) resolveCategory(userID int64, name string, categoryID int64) (*model.Category, error) {
	if categoryID != 0 {
		return s.categories.GetVisible(categoryID, userID)
	}

	c, err := s.categories.GetDefaultByName(grocery.Categorize(name))
	if err != nil {
		return nil, err
	}
	if c == nil {
		c, err = s.categories.GetDefaultByName(grocery.FallbackCategory)
		if err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, &grocery.ValidationError{Field: "category_id", Message: "is required"}
	}
	return c, nil
}

// AddItemsBatch puts library items on the list in one transaction. System
// items are cloned into the user's library first. Items already active are
// skipped, checked items are reactivated with empty notes, and ids that do
// not resolve to a visible item are ignored.
func (s *Service) AddItemsBatch(userID, listID int64, itemIDs []int64) ([]model.EnrichedListItem, error) {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return nil, err
	}
	return s.applyBatch(userID, listID, itemIDs, "")
}

// AddMenuToList expands a menu onto the list. It behaves like AddItemsBatch
// except that the menu name is written into the notes of new and reactivated
// rows and appended to the notes of rows that are already active.
func (s *Service) AddMenuToList(userID, listID, menuID int64, excludeItemIDs []int64) ([]model.EnrichedListItem, error) {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return nil, err
	}

	menu, err := s.menus.GetOwned(menuID, userID)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, store.ErrMenuNotFound
	}

	ids, err := s.menus.ItemIDs(menuID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[int64]bool, len(excludeItemIDs))
	for _, id := range excludeItemIDs {
		excluded[id] = true
	}
	var keep []int64
	for _, id := range ids {
		if !excluded[id] {
			keep = append(keep, id)
		}
	}

	return s.applyBatch(userID, listID, keep, menu.Name)
}

// applyBatch runs a batch add inside one transaction. menuName is empty for
// a plain batch. The sort order counter is read once and advanced locally.
func (s *Service) applyBatch(userID, listID int64, itemIDs []int64, menuName string) ([]model.EnrichedListItem, error) {
	menuNotes := grocery.Truncate(menuName, grocery.MaxNotesLen)

	var affected []int64
	err := store.InTx(s.db, func(tx *sql.Tx) error {
		items := store.NewItemStore(tx)
		listItems := store.NewListItemStore(tx)

		next, err := listItems.MaxSortOrder(listID)
		if err != nil {
			return err
		}

		seen := make(map[int64]bool, len(itemIDs))
		for _, srcID := range itemIDs {
			src, err := items.GetByID(srcID)
			if err != nil {
				return err
			}
			if src == nil {
				s.logger.Debug("batch item missing, skipping", "list_id", listID, "item_id", srcID)
				continue
			}

			libItem, err := grocery.ResolveForUser(items, src, userID)
			if err != nil {
				return err
			}
			if libItem == nil || seen[libItem.ID] {
				continue
			}
			seen[libItem.ID] = true

			existing, err := listItems.GetByItem(listID, libItem.ID)
			if err != nil {
				return err
			}

			switch {
			case existing == nil:
				next++
				id, err := listItems.Insert(listID, libItem.ID, model.DefaultQuantity, menuNotes, next)
				if err != nil {
					return err
				}
				affected = append(affected, id)

			case existing.IsChecked:
				next++
				if _, err := listItems.Reactivate(existing.ID, model.DefaultQuantity, menuNotes, next); err != nil {
					return err
				}
				affected = append(affected, existing.ID)

			case menuName != "":
				merged := grocery.MergeMenuNotes(existing.Notes, menuName)
				if merged == existing.Notes {
					continue
				}
				if err := listItems.SetNotes(existing.ID, merged); err != nil {
					return err
				}
				affected = append(affected, existing.ID)
			}
		}

		if len(affected) == 0 {
			return nil
		}
		return store.NewListStore(tx).Touch(listID)
	})
	if err != nil {
		return nil, err
	}

	enriched, err := s.listItems.EnrichMany(affected)
	if err != nil {
		return nil, err
	}
	if len(enriched) > 0 {
		s.publish(model.ItemsAdded{ListID: listID, ListItems: enriched})
	}
	return enriched, nil
}

// UpdateInput is a partial update. Nil fields are not touched.
type UpdateInput struct {
	Quantity   *string
	Notes      *string
	IsChecked  *bool
	CategoryID *int64
}

// ErrNoUpdates is returned when an update names no fields.
var ErrNoUpdates = &grocery.ValidationError{Field: "body", Message: "has no updates"}

// UpdateListItem applies a partial update. Checking an item resets its
// quantity and notes to the defaults, overriding any values supplied in the
// same call. Unchecking moves the item to the end of the active items. A
// category change is written to the library item, so it shows on every list
// that references that item, and must be visible to the item's creator.
func (s *Service) UpdateListItem(userID, listID, listItemID int64, in UpdateInput) (*model.EnrichedListItem, error) {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return nil, err
	}

	existing, err := s.listItems.Get(listID, listItemID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrListItemNotFound
	}

	if in.Quantity == nil && in.Notes == nil && in.IsChecked == nil && in.CategoryID == nil {
		return nil, ErrNoUpdates
	}

	changes := store.ListItemChanges{
		Quantity:  in.Quantity,
		Notes:     in.Notes,
		IsChecked: in.IsChecked,
	}
	if in.IsChecked != nil && *in.IsChecked {
		quantity, notes := model.DefaultQuantity, model.DefaultNotes
		changes.Quantity = &quantity
		changes.Notes = &notes
		checkedAt := s.now().UTC()
		if existing.IsChecked && existing.CheckedAt != nil {
			checkedAt = *existing.CheckedAt
		}
		changes.CheckedAt = &checkedAt
	}

	if changes.Quantity != nil {
		if err := grocery.CheckLength("quantity", *changes.Quantity, grocery.MaxQuantityLen); err != nil {
			return nil, err
		}
	}
	if changes.Notes != nil {
		if err := grocery.CheckLength("notes", *changes.Notes, grocery.MaxNotesLen); err != nil {
			return nil, err
		}
	}

	if in.CategoryID != nil {
		libItem, err := s.items.GetByID(existing.ItemID)
		if err != nil {
			return nil, err
		}
		if libItem == nil {
			return nil, store.ErrItemNotFound
		}
		// System items can only use default categories.
		var owner int64
		if libItem.CreatedBy != nil {
			owner = *libItem.CreatedBy
		}
		if _, err := s.categories.GetVisible(*in.CategoryID, owner); err != nil {
			return nil, err
		}
	}

	unchecking := in.IsChecked != nil && !*in.IsChecked && existing.IsChecked

	err = store.InTx(s.db, func(tx *sql.Tx) error {
		listItems := store.NewListItemStore(tx)
		if unchecking {
			max, err := listItems.MaxSortOrder(listID)
			if err != nil {
				return err
			}
			next := max + 1
			changes.SortOrder = &next
		}
		if err := listItems.Update(listItemID, changes); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if err := store.NewItemStore(tx).UpdateCategory(existing.ItemID, *in.CategoryID); err != nil {
				return err
			}
		}
		return store.NewListStore(tx).Touch(listID)
	})
	if err != nil {
		return nil, err
	}

	item, err := s.listItems.Enrich(listItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, store.ErrListItemNotFound
	}

	if checkOnly(existing, item, in) {
		s.publish(model.ItemChecked{
			ListID:     listID,
			ListItemID: listItemID,
			IsChecked:  item.IsChecked,
			CheckedAt:  item.CheckedAt,
		})
	} else {
		s.publish(model.ItemUpdated{ListID: listID, ListItem: item})
	}
	return item, nil
}

// checkOnly reports whether an update changed nothing but the checked state,
// in which case subscribers get the lightweight item-checked event.
func checkOnly(before *model.ListItem, after *model.EnrichedListItem, in UpdateInput) bool {
	if in.IsChecked == nil || in.CategoryID != nil {
		return false
	}
	return before.Quantity == after.Quantity && before.Notes == after.Notes && before.SortOrder == after.SortOrder
}

// RemoveListItem deletes the row. The library item is kept.
func (s *Service) RemoveListItem(userID, listID, listItemID int64) error {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return err
	}

	existing, err := s.listItems.Get(listID, listItemID)
	if err != nil {
		return err
	}
	if existing == nil {
		return store.ErrListItemNotFound
	}

	if err := s.listItems.Delete(listItemID); err != nil {
		return err
	}
	if err := s.lists.Touch(listID); err != nil {
		s.logger.Warn("touch list", "list_id", listID, "error", err)
	}

	s.publish(model.ItemRemoved{ListID: listID, ListItemID: listItemID})
	return nil
}

// ClearChecked removes every checked item on the list in one transaction and
// returns how many were removed.
func (s *Service) ClearChecked(userID, listID int64) (int, error) {
	if _, err := s.lists.CheckAccess(userID, listID, true); err != nil {
		return 0, err
	}

	var removed []int64
	err := store.InTx(s.db, func(tx *sql.Tx) error {
		var err error
		removed, err = store.NewListItemStore(tx).DeleteChecked(listID)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return store.NewListStore(tx).Touch(listID)
	})
	if err != nil {
		return 0, err
	}

	for _, id := range removed {
		s.publish(model.ItemRemoved{ListID: listID, ListItemID: id})
	}
	return len(removed), nil
}

// GetList returns the list with all of its materialized items.
func (s *Service) GetList(userID, listID int64) (*model.ListDetail, error) {
	l, err := s.lists.CheckAccess(userID, listID, false)
	if err != nil {
		return nil, err
	}

	items, err := s.listItems.ListEnriched(listID)
	if err != nil {
		return nil, err
	}
	return &model.ListDetail{List: *l, IsOwner: l.OwnerID == userID, Items: items}, nil
}

func (s *Service) publish(ev model.ListEvent) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(ev)
}

func validateFields(name, quantity, notes string) error {
	if err := grocery.CheckLength("name", name, grocery.MaxNameLen); err != nil {
		return err
	}
	if err := grocery.CheckLength("quantity", quantity, grocery.MaxQuantityLen); err != nil {
		return err
	}
	return grocery.CheckLength("notes", notes, grocery.MaxNotesLen)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var verr *grocery.ValidationError
	return errors.As(err, &verr)
}
