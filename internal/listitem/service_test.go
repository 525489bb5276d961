package listitem

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []model.ListEvent
}

func (b *recordingBroadcaster) Publish(ev model.ListEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) last(t *testing.T) model.ListEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		t.Fatal("no events published")
	}
	return b.events[len(b.events)-1]
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fixture struct {
	db    *sql.DB
	svc   *Service
	bc    *recordingBroadcaster
	alice *model.User
	bob   *model.User
	list  *model.List
}

func setupServiceTest(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	alice, err := users.Create("alice", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := users.Create("bob", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	list, err := store.NewListStore(db).Create("Groceries", alice.ID)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	bc := &recordingBroadcaster{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		db:    db,
		svc:   NewService(db, bc, logger),
		bc:    bc,
		alice: alice,
		bob:   bob,
		list:  list,
	}
}

func (f *fixture) category(t *testing.T, name string) int64 {
	t.Helper()
	c, err := store.NewCategoryStore(f.db).GetDefaultByName(name)
	if err != nil || c == nil {
		t.Fatalf("category %s: %v", name, err)
	}
	return c.ID
}

func (f *fixture) add(t *testing.T, name string) *model.EnrichedListItem {
	t.Helper()
	item, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: name})
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return item
}

func (f *fixture) check(t *testing.T, listItemID int64) *model.EnrichedListItem {
	t.Helper()
	checked := true
	item, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, listItemID, UpdateInput{IsChecked: &checked})
	if err != nil {
		t.Fatalf("check %d: %v", listItemID, err)
	}
	return item
}

func (f *fixture) systemItem(t *testing.T, name string) *model.Item {
	t.Helper()
	var id int64
	if err := f.db.QueryRow(`SELECT id FROM items WHERE name = ? AND created_by IS NULL`, name).Scan(&id); err != nil {
		t.Fatalf("system item %s: %v", name, err)
	}
	it, _ := store.NewItemStore(f.db).GetByID(id)
	return it
}

func TestAddItemThenConflict(t *testing.T) {
	f := setupServiceTest(t)
	dairy := f.category(t, "Dairy")

	item, created, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "milk", CategoryID: dairy})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if item.Item.Name != "milk" {
		t.Errorf("name = %q, want milk", item.Item.Name)
	}
	if item.IsChecked {
		t.Error("new item is checked")
	}
	if item.SortOrder != 1 {
		t.Errorf("sort_order = %d, want 1", item.SortOrder)
	}
	if item.Quantity != "1" || item.Notes != "" {
		t.Errorf("quantity=%q notes=%q, want defaults", item.Quantity, item.Notes)
	}
	if item.Item.CreatedBy == nil || *item.Item.CreatedBy != f.alice.ID {
		t.Errorf("library item not owned by alice: %+v", item.Item)
	}

	ev, ok := f.bc.last(t).(model.ItemAdded)
	if !ok {
		t.Fatalf("event = %T, want ItemAdded", f.bc.last(t))
	}
	if ev.ListID != f.list.ID || ev.ListItem.ID != item.ID {
		t.Errorf("event = %+v", ev)
	}

	_, _, err = f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "Milk", CategoryID: dairy})
	if !errors.Is(err, store.ErrAlreadyOnList) {
		t.Fatalf("second add err = %v, want ErrAlreadyOnList", err)
	}
	if f.bc.count() != 1 {
		t.Errorf("events = %d, want 1", f.bc.count())
	}
}

func TestAddItemSortOrderIncrements(t *testing.T) {
	f := setupServiceTest(t)

	a := f.add(t, "milk")
	b := f.add(t, "eggs")
	c := f.add(t, "bread")
	if a.SortOrder != 1 || b.SortOrder != 2 || c.SortOrder != 3 {
		t.Errorf("sort orders = %d, %d, %d, want 1, 2, 3", a.SortOrder, b.SortOrder, c.SortOrder)
	}
}

func TestAddItemAutoCategorizes(t *testing.T) {
	f := setupServiceTest(t)

	item := f.add(t, "Cheddar Cheese")
	if item.Category.Name != "Dairy" {
		t.Errorf("category = %q, want Dairy", item.Category.Name)
	}

	item = f.add(t, "zzyzx")
	if item.Category.Name != grocery.FallbackCategory {
		t.Errorf("category = %q, want %s", item.Category.Name, grocery.FallbackCategory)
	}
}

func TestAddItemReactivatesChecked(t *testing.T) {
	f := setupServiceTest(t)

	first, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "milk", Quantity: "2", Notes: "skim"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	f.add(t, "eggs")
	f.check(t, first.ID)

	again, created, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "MILK"})
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if created {
		t.Error("created = true, want reactivation")
	}
	if again.ID != first.ID {
		t.Errorf("id = %d, want same row %d", again.ID, first.ID)
	}
	if again.IsChecked || again.CheckedAt != nil {
		t.Errorf("still checked: %+v", again.ListItem)
	}
	if again.Quantity != "1" || again.Notes != "" {
		t.Errorf("quantity=%q notes=%q, want 1 and empty", again.Quantity, again.Notes)
	}
	if again.SortOrder != 3 {
		t.Errorf("sort_order = %d, want 3 (after eggs)", again.SortOrder)
	}

	if _, ok := f.bc.last(t).(model.ItemUpdated); !ok {
		t.Errorf("event = %T, want ItemUpdated", f.bc.last(t))
	}
}

func TestAddItemValidation(t *testing.T) {
	f := setupServiceTest(t)

	long := make([]rune, grocery.MaxNameLen+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		in   AddInput
	}{
		{"blank name", AddInput{Name: "   "}},
		{"long name", AddInput{Name: string(long)}},
		{"long quantity", AddInput{Name: "milk", Quantity: string(long[:grocery.MaxQuantityLen+1])}},
		{"unknown category", AddInput{Name: "milk", CategoryID: 9999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, tt.in)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if f.bc.count() != 0 {
		t.Errorf("events = %d, want 0", f.bc.count())
	}
}

func TestAccessGating(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "milk")
	checked := true

	if _, _, err := f.svc.AddItem(f.bob.ID, f.list.ID, AddInput{Name: "eggs"}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("add err = %v, want forbidden", err)
	}
	if _, err := f.svc.UpdateListItem(f.bob.ID, f.list.ID, item.ID, UpdateInput{IsChecked: &checked}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("update err = %v, want forbidden", err)
	}
	if err := f.svc.RemoveListItem(f.bob.ID, f.list.ID, item.ID); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("remove err = %v, want forbidden", err)
	}
	if _, err := f.svc.AddItemsBatch(f.bob.ID, f.list.ID, []int64{item.ItemID}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("batch err = %v, want forbidden", err)
	}
	if _, err := f.svc.ClearChecked(f.bob.ID, f.list.ID); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("clear err = %v, want forbidden", err)
	}
	if _, err := f.svc.GetList(f.bob.ID, f.list.ID); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("get err = %v, want forbidden", err)
	}
	if _, err := f.svc.GetList(f.alice.ID, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing list err = %v, want not found", err)
	}

	// A view share can read but not write.
	store.NewListStore(f.db).Share(f.list.ID, f.bob.ID, model.PermissionView)
	if _, err := f.svc.GetList(f.bob.ID, f.list.ID); err != nil {
		t.Errorf("view share get: %v", err)
	}
	if _, _, err := f.svc.AddItem(f.bob.ID, f.list.ID, AddInput{Name: "eggs"}); !errors.Is(err, store.ErrEditRequired) {
		t.Errorf("view share add err = %v, want ErrEditRequired", err)
	}

	// An edit share can write.
	store.NewListStore(f.db).Share(f.list.ID, f.bob.ID, model.PermissionEdit)
	if _, _, err := f.svc.AddItem(f.bob.ID, f.list.ID, AddInput{Name: "eggs"}); err != nil {
		t.Errorf("edit share add: %v", err)
	}
}

func TestUpdateCheckResetsFields(t *testing.T) {
	f := setupServiceTest(t)

	item, _, _ := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "milk", Quantity: "2", Notes: "skim"})

	checked := true
	q, n := "5", "whole"
	got, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, item.ID, UpdateInput{IsChecked: &checked, Quantity: &q, Notes: &n})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.IsChecked || got.CheckedAt == nil {
		t.Errorf("checked=%v checked_at=%v", got.IsChecked, got.CheckedAt)
	}
	if got.Quantity != "1" || got.Notes != "" {
		t.Errorf("quantity=%q notes=%q, want reset", got.Quantity, got.Notes)
	}
	// Quantity and notes changed, so the full update event goes out.
	if _, ok := f.bc.last(t).(model.ItemUpdated); !ok {
		t.Errorf("event = %T, want ItemUpdated", f.bc.last(t))
	}
}

func TestUpdateCheckOnlyEmitsItemChecked(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "milk")

	got := f.check(t, item.ID)
	ev, ok := f.bc.last(t).(model.ItemChecked)
	if !ok {
		t.Fatalf("event = %T, want ItemChecked", f.bc.last(t))
	}
	if ev.ListItemID != item.ID || !ev.IsChecked || ev.CheckedAt == nil {
		t.Errorf("event = %+v", ev)
	}
	if !ev.CheckedAt.Equal(*got.CheckedAt) {
		t.Errorf("event checked_at = %v, want %v", ev.CheckedAt, got.CheckedAt)
	}

	unchecked := false
	got, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, item.ID, UpdateInput{IsChecked: &unchecked})
	if err != nil {
		t.Fatalf("uncheck: %v", err)
	}
	if got.IsChecked || got.CheckedAt != nil {
		t.Errorf("after uncheck: %+v", got.ListItem)
	}
	ev, ok = f.bc.last(t).(model.ItemChecked)
	if !ok || ev.IsChecked {
		t.Errorf("event = %+v, want unchecked ItemChecked", f.bc.last(t))
	}
}

func TestUpdateCategoryAppliesToLibraryItem(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "tofu")

	other, _ := store.NewListStore(f.db).Create("Other list", f.alice.ID)
	onOther, _, err := f.svc.AddItem(f.alice.ID, other.ID, AddInput{Name: "tofu"})
	if err != nil {
		t.Fatalf("add to other list: %v", err)
	}

	produce := f.category(t, "Produce")
	got, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, item.ID, UpdateInput{CategoryID: &produce})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Category.Name != "Produce" {
		t.Errorf("category = %q, want Produce", got.Category.Name)
	}

	enriched, _ := store.NewListItemStore(f.db).Enrich(onOther.ID)
	if enriched.Category.Name != "Produce" {
		t.Errorf("other list category = %q, want Produce", enriched.Category.Name)
	}
	if _, ok := f.bc.last(t).(model.ItemUpdated); !ok {
		t.Errorf("event = %T, want ItemUpdated", f.bc.last(t))
	}
}

func TestUpdateErrors(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "milk")

	if _, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, item.ID, UpdateInput{}); !errors.Is(err, ErrNoUpdates) {
		t.Errorf("empty update err = %v, want ErrNoUpdates", err)
	}

	long := string(make([]byte, grocery.MaxNotesLen+1))
	if _, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, item.ID, UpdateInput{Notes: &long}); !IsValidation(err) {
		t.Errorf("long notes err = %v, want validation", err)
	}

	q := "2"
	if _, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, 999, UpdateInput{Quantity: &q}); !errors.Is(err, store.ErrListItemNotFound) {
		t.Errorf("missing item err = %v, want ErrListItemNotFound", err)
	}
}

func TestRemoveListItem(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "milk")

	if err := f.svc.RemoveListItem(f.alice.ID, f.list.ID, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ev, ok := f.bc.last(t).(model.ItemRemoved)
	if !ok || ev.ListItemID != item.ID {
		t.Errorf("event = %+v, want ItemRemoved for %d", f.bc.last(t), item.ID)
	}

	// The library item is kept.
	if it, _ := store.NewItemStore(f.db).GetByID(item.ItemID); it == nil {
		t.Error("library item deleted with list item")
	}

	if err := f.svc.RemoveListItem(f.alice.ID, f.list.ID, item.ID); !errors.Is(err, store.ErrListItemNotFound) {
		t.Errorf("second remove err = %v, want ErrListItemNotFound", err)
	}
}

func TestBatchClonesSystemItemsAndSkipsMissing(t *testing.T) {
	f := setupServiceTest(t)
	sysMilk := f.systemItem(t, "milk")
	sysEggs := f.systemItem(t, "eggs")

	items, err := f.svc.AddItemsBatch(f.alice.ID, f.list.ID, []int64{sysMilk.ID, 99999, sysEggs.ID})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Item.CreatedBy == nil || *it.Item.CreatedBy != f.alice.ID {
			t.Errorf("item %q not cloned into alice's library: %+v", it.Item.Name, it.Item)
		}
		if it.Item.ID == sysMilk.ID || it.Item.ID == sysEggs.ID {
			t.Errorf("list references system item %d directly", it.Item.ID)
		}
	}
	if items[0].SortOrder != 1 || items[1].SortOrder != 2 {
		t.Errorf("sort orders = %d, %d, want 1, 2", items[0].SortOrder, items[1].SortOrder)
	}

	ev, ok := f.bc.last(t).(model.ItemsAdded)
	if !ok {
		t.Fatalf("event = %T, want ItemsAdded", f.bc.last(t))
	}
	if len(ev.ListItems) != 2 {
		t.Errorf("event carries %d items, want 2", len(ev.ListItems))
	}
	if f.bc.count() != 1 {
		t.Errorf("events = %d, want exactly one", f.bc.count())
	}
}

func TestBatchUsesShadowingItem(t *testing.T) {
	f := setupServiceTest(t)
	own := f.add(t, "Milk")
	f.check(t, own.ID)

	items, err := f.svc.AddItemsBatch(f.alice.ID, f.list.ID, []int64{f.systemItem(t, "milk").ID})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 1 || items[0].ID != own.ID {
		t.Fatalf("items = %+v, want reactivated row %d", items, own.ID)
	}
	if items[0].IsChecked || items[0].Notes != "" {
		t.Errorf("reactivated row = %+v", items[0].ListItem)
	}
}

func TestBatchSkipsActiveAndForeignItems(t *testing.T) {
	f := setupServiceTest(t)
	active := f.add(t, "milk")

	bobsItem, err := store.NewItemStore(f.db).Create("secret sauce", f.category(t, "Other"), f.bob.ID)
	if err != nil {
		t.Fatalf("create bob item: %v", err)
	}

	items, err := f.svc.AddItemsBatch(f.alice.ID, f.list.ID, []int64{active.ItemID, bobsItem.ID})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
	// No items-added event for an empty result.
	if _, ok := f.bc.last(t).(model.ItemAdded); !ok {
		t.Errorf("last event = %T, want the earlier ItemAdded", f.bc.last(t))
	}
}

func (f *fixture) menu(t *testing.T, name string, itemIDs ...int64) *model.Menu {
	t.Helper()
	m, err := store.NewMenuStore(f.db).Create(name, f.alice.ID, itemIDs)
	if err != nil {
		t.Fatalf("create menu: %v", err)
	}
	return m
}

func TestMenuMergesNotes(t *testing.T) {
	f := setupServiceTest(t)

	beef, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "ground beef", Notes: "spicy"})
	if err != nil {
		t.Fatalf("add beef: %v", err)
	}
	tortillas := f.systemItem(t, "tortillas")
	onions := f.systemItem(t, "onions")
	m := f.menu(t, "Taco Night", beef.ItemID, tortillas.ID, onions.ID)

	items, err := f.svc.AddMenuToList(f.alice.ID, f.list.ID, m.ID, nil)
	if err != nil {
		t.Fatalf("apply menu: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	byName := map[string]model.EnrichedListItem{}
	for _, it := range items {
		byName[it.Item.Name] = it
	}
	if got := byName["ground beef"].Notes; got != "spicy, Taco Night" {
		t.Errorf("beef notes = %q, want %q", got, "spicy, Taco Night")
	}
	if byName["ground beef"].ID != beef.ID {
		t.Error("beef row replaced instead of merged")
	}
	for _, name := range []string{"tortillas", "onions"} {
		if got := byName[name].Notes; got != "Taco Night" {
			t.Errorf("%s notes = %q, want Taco Night", name, got)
		}
	}

	// Applying again does not repeat the menu name.
	items, err = f.svc.AddMenuToList(f.alice.ID, f.list.ID, m.ID, nil)
	if err != nil {
		t.Fatalf("apply menu again: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("second apply changed %d rows, want 0", len(items))
	}
}

func TestMenuExcludesAndReactivates(t *testing.T) {
	f := setupServiceTest(t)

	eggs := f.add(t, "eggs")
	f.check(t, eggs.ID)
	bread := f.systemItem(t, "bread")
	coffee := f.systemItem(t, "coffee")
	m := f.menu(t, "Breakfast", eggs.ItemID, bread.ID, coffee.ID)

	items, err := f.svc.AddMenuToList(f.alice.ID, f.list.ID, m.ID, []int64{coffee.ID})
	if err != nil {
		t.Fatalf("apply menu: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Item.Name == "coffee" {
			t.Error("excluded item was added")
		}
		if it.Item.Name == "eggs" {
			if it.ID != eggs.ID || it.IsChecked || it.Notes != "Breakfast" {
				t.Errorf("eggs = %+v, want reactivated with menu notes", it.ListItem)
			}
		}
	}
}

func TestMenuNotesTruncated(t *testing.T) {
	f := setupServiceTest(t)

	notes := make([]byte, grocery.MaxNotesLen-3)
	for i := range notes {
		notes[i] = 'x'
	}
	beef, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "ground beef", Notes: string(notes)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	m := f.menu(t, "Taco Night", beef.ItemID)

	items, err := f.svc.AddMenuToList(f.alice.ID, f.list.ID, m.ID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if got := len([]rune(items[0].Notes)); got != grocery.MaxNotesLen {
		t.Errorf("notes length = %d, want %d", got, grocery.MaxNotesLen)
	}
}

func TestMenuNotFound(t *testing.T) {
	f := setupServiceTest(t)

	bobsMenu, _ := store.NewMenuStore(f.db).Create("Bob's", f.bob.ID, nil)
	if _, err := f.svc.AddMenuToList(f.alice.ID, f.list.ID, bobsMenu.ID, nil); !errors.Is(err, store.ErrMenuNotFound) {
		t.Errorf("err = %v, want ErrMenuNotFound", err)
	}
}

func TestClearChecked(t *testing.T) {
	f := setupServiceTest(t)

	milk := f.add(t, "milk")
	eggs := f.add(t, "eggs")
	bread := f.add(t, "bread")
	f.check(t, milk.ID)
	f.check(t, bread.ID)
	before := f.bc.count()

	n, err := f.svc.ClearChecked(f.alice.ID, f.list.ID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared = %d, want 2", n)
	}
	if f.bc.count()-before != 2 {
		t.Errorf("events = %d, want one item-removed per row", f.bc.count()-before)
	}

	detail, err := f.svc.GetList(f.alice.ID, f.list.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].ID != eggs.ID {
		t.Errorf("remaining = %+v, want eggs only", detail.Items)
	}
	if !detail.IsOwner {
		t.Error("is_owner = false for owner")
	}
}

func TestConcurrentAddSameItem(t *testing.T) {
	f := setupServiceTest(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "milk"})
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrAlreadyOnList):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("ok=%d conflicts=%d, want 1 and 1", ok, conflicts)
	}

	var rows int
	f.db.QueryRow(`SELECT COUNT(*) FROM list_items WHERE list_id = ?`, f.list.ID).Scan(&rows)
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestNilBroadcaster(t *testing.T) {
	f := setupServiceTest(t)
	svc := NewService(f.db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, _, err := svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "milk"}); err != nil {
		t.Fatalf("add without broadcaster: %v", err)
	}
}

func TestAddItemNonASCIINameTwice(t *testing.T) {
	f := setupServiceTest(t)
	first := f.add(t, "Äpfel")

	_, _, err := f.svc.AddItem(f.alice.ID, f.list.ID, AddInput{Name: "äPFEL"})
	if !errors.Is(err, store.ErrAlreadyOnList) {
		t.Fatalf("second add err = %v, want ErrAlreadyOnList", err)
	}

	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM items WHERE created_by = ?`, f.alice.ID).Scan(&n); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if n != 1 {
		t.Errorf("library items = %d, want 1", n)
	}

	// On a second list the existing library item is reused.
	other, _ := store.NewListStore(f.db).Create("Other", f.alice.ID)
	again, _, err := f.svc.AddItem(f.alice.ID, other.ID, AddInput{Name: "ÄPFEL"})
	if err != nil {
		t.Fatalf("add to other list: %v", err)
	}
	if again.ItemID != first.ItemID {
		t.Errorf("item id = %d, want %d", again.ItemID, first.ItemID)
	}
}

func TestBatchRollsBackOnFailure(t *testing.T) {
	f := setupServiceTest(t)
	eggs := f.add(t, "eggs")
	f.check(t, eggs.ID)
	events := f.bc.count()

	_, err := f.db.Exec(`CREATE TRIGGER no_bread BEFORE INSERT ON list_items
		WHEN (SELECT name FROM items WHERE id = NEW.item_id) = 'bread'
		BEGIN SELECT RAISE(ABORT, 'bread rejected'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	ids := []int64{f.systemItem(t, "milk").ID, eggs.ItemID, f.systemItem(t, "bread").ID}
	if _, err := f.svc.AddItemsBatch(f.alice.ID, f.list.ID, ids); err == nil {
		t.Fatal("expected batch to fail")
	}

	var rows, clones int
	f.db.QueryRow(`SELECT COUNT(*) FROM list_items WHERE list_id = ?`, f.list.ID).Scan(&rows)
	if rows != 1 {
		t.Errorf("list rows = %d, want only the checked eggs row", rows)
	}
	f.db.QueryRow(`SELECT COUNT(*) FROM items WHERE created_by = ?`, f.alice.ID).Scan(&clones)
	if clones != 1 {
		t.Errorf("alice's items = %d, want 1 (no clones kept)", clones)
	}

	got, _ := store.NewListItemStore(f.db).Get(f.list.ID, eggs.ID)
	if got == nil || !got.IsChecked {
		t.Errorf("eggs = %+v, want still checked", got)
	}
	if f.bc.count() != events {
		t.Errorf("events = %d, want %d (nothing published)", f.bc.count(), events)
	}
}

func TestUpdateCategoryUsesItemOwnersCategories(t *testing.T) {
	f := setupServiceTest(t)
	if err := store.NewListStore(f.db).Share(f.list.ID, f.bob.ID, model.PermissionEdit); err != nil {
		t.Fatalf("share: %v", err)
	}
	item := f.add(t, "tofu")

	cats := store.NewCategoryStore(f.db)
	bobs, err := cats.Create("Bob's aisle", "#000000", f.bob.ID)
	if err != nil {
		t.Fatalf("create bob category: %v", err)
	}
	alices, err := cats.Create("Alice's aisle", "#ffffff", f.alice.ID)
	if err != nil {
		t.Fatalf("create alice category: %v", err)
	}

	// Bob edits alice's item, so only alice's categories apply.
	_, err = f.svc.UpdateListItem(f.bob.ID, f.list.ID, item.ID, UpdateInput{CategoryID: &bobs.ID})
	if !errors.Is(err, store.ErrCategoryNotFound) {
		t.Errorf("editor's own category err = %v, want ErrCategoryNotFound", err)
	}
	got, err := f.svc.UpdateListItem(f.bob.ID, f.list.ID, item.ID, UpdateInput{CategoryID: &alices.ID})
	if err != nil {
		t.Fatalf("owner's category: %v", err)
	}
	if got.Category.ID != alices.ID {
		t.Errorf("category = %d, want %d", got.Category.ID, alices.ID)
	}
}

func TestUncheckMovesToEnd(t *testing.T) {
	f := setupServiceTest(t)
	milk := f.add(t, "milk")
	f.add(t, "eggs")
	f.check(t, milk.ID)
	f.add(t, "bread")

	unchecked := false
	got, err := f.svc.UpdateListItem(f.alice.ID, f.list.ID, milk.ID, UpdateInput{IsChecked: &unchecked})
	if err != nil {
		t.Fatalf("uncheck: %v", err)
	}
	if got.SortOrder != 4 {
		t.Errorf("sort_order = %d, want 4 (after bread)", got.SortOrder)
	}
	// The row moved, so subscribers get the full row.
	if _, ok := f.bc.last(t).(model.ItemUpdated); !ok {
		t.Errorf("event = %T, want ItemUpdated", f.bc.last(t))
	}

	// Unchecking an active item leaves it in place.
	eggs, _ := store.NewListItemStore(f.db).GetByItem(f.list.ID, f.ownItemID(t, "eggs"))
	got, err = f.svc.UpdateListItem(f.alice.ID, f.list.ID, eggs.ID, UpdateInput{IsChecked: &unchecked})
	if err != nil {
		t.Fatalf("uncheck active: %v", err)
	}
	if got.SortOrder != eggs.SortOrder {
		t.Errorf("active sort_order = %d, want %d", got.SortOrder, eggs.SortOrder)
	}
}

func (f *fixture) ownItemID(t *testing.T, name string) int64 {
	t.Helper()
	it, err := store.NewItemStore(f.db).FindOwnedByName(f.alice.ID, name)
	if err != nil || it == nil {
		t.Fatalf("alice's %s: %v", name, err)
	}
	return it.ID
}

func TestUpdateLibraryItemBroadcastsToEveryList(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "tofu")
	other, _ := store.NewListStore(f.db).Create("Other", f.alice.ID)
	onOther, _, _ := f.svc.AddItem(f.alice.ID, other.ID, AddInput{Name: "tofu"})
	events := f.bc.count()

	name := "Silken tofu"
	it, err := f.svc.UpdateLibraryItem(f.alice.ID, item.ItemID, LibraryInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if it.Name != "Silken tofu" {
		t.Errorf("name = %q, want Silken tofu", it.Name)
	}
	if f.bc.count() != events+2 {
		t.Fatalf("events = %d, want %d", f.bc.count(), events+2)
	}
	ev, ok := f.bc.last(t).(model.ItemUpdated)
	if !ok || ev.ListID != other.ID || ev.ListItem.ID != onOther.ID || ev.ListItem.Item.Name != "Silken tofu" {
		t.Errorf("last event = %+v", f.bc.last(t))
	}

	if _, err := f.svc.UpdateLibraryItem(f.bob.ID, item.ItemID, LibraryInput{Name: &name}); !errors.Is(err, store.ErrItemNotFound) {
		t.Errorf("other user err = %v, want ErrItemNotFound", err)
	}
	if _, err := f.svc.UpdateLibraryItem(f.alice.ID, item.ItemID, LibraryInput{}); !errors.Is(err, ErrNoUpdates) {
		t.Errorf("empty update err = %v, want ErrNoUpdates", err)
	}
}

func TestDeleteLibraryItemRemovesRows(t *testing.T) {
	f := setupServiceTest(t)
	item := f.add(t, "tofu")
	other, _ := store.NewListStore(f.db).Create("Other", f.alice.ID)
	f.svc.AddItem(f.alice.ID, other.ID, AddInput{Name: "tofu"})
	events := f.bc.count()

	if err := f.svc.DeleteLibraryItem(f.bob.ID, item.ItemID); !errors.Is(err, store.ErrItemNotFound) {
		t.Errorf("other user err = %v, want ErrItemNotFound", err)
	}
	if err := f.svc.DeleteLibraryItem(f.alice.ID, item.ItemID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if f.bc.count() != events+2 {
		t.Errorf("events = %d, want %d", f.bc.count(), events+2)
	}
	if _, ok := f.bc.last(t).(model.ItemRemoved); !ok {
		t.Errorf("event = %T, want ItemRemoved", f.bc.last(t))
	}
	var rows int
	f.db.QueryRow(`SELECT COUNT(*) FROM list_items WHERE item_id = ?`, item.ItemID).Scan(&rows)
	if rows != 0 {
		t.Errorf("list rows = %d, want 0", rows)
	}
}
