package model

import "time"

const (
	DefaultQuantity = "1"
	DefaultNotes    = ""
)

// ListItem is one item's presence on one list. At most one row exists per
// (ListID, ItemID).
type ListItem struct {
	ID        int64      `json:"id"`
	ListID    int64      `json:"list_id"`
	ItemID    int64      `json:"item_id"`
	Quantity  string     `json:"quantity"`
	Notes     string     `json:"notes"`
	IsChecked bool       `json:"is_checked"`
	SortOrder int        `json:"sort_order"`
	AddedAt   time.Time  `json:"added_at"`
	CheckedAt *time.Time `json:"checked_at"`
}

// EnrichedListItem is the list item joined with its library item and
// category. REST responses and live-update payloads both use this shape.
type EnrichedListItem struct {
	ListItem
	Item     Item     `json:"item"`
	Category Category `json:"category"`
}
