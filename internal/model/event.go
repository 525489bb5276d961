package model

import "time"

// Live-update event names.
const (
	EventItemAdded   = "list:item-added"
	EventItemChecked = "list:item-checked"
	EventItemRemoved = "list:item-removed"
	EventItemUpdated = "list:item-updated"
	EventItemsAdded  = "list:items-added"
	EventListError   = "list:error"
)

// ListEvent is one of the fixed set of events fanned out to a list's
// subscribers. The set is closed: only types in this package implement it.
type ListEvent interface {
	EventName() string
	Room() int64
	listEvent()
}

type ItemAdded struct {
	ListID   int64             `json:"listId"`
	ListItem *EnrichedListItem `json:"listItem"`
}

type ItemChecked struct {
	ListID     int64      `json:"listId"`
	ListItemID int64      `json:"listItemId"`
	IsChecked  bool       `json:"is_checked"`
	CheckedAt  *time.Time `json:"checked_at"`
}

type ItemRemoved struct {
	ListID     int64 `json:"listId"`
	ListItemID int64 `json:"listItemId"`
}

type ItemUpdated struct {
	ListID   int64             `json:"listId"`
	ListItem *EnrichedListItem `json:"listItem"`
}

type ItemsAdded struct {
	ListID    int64              `json:"listId"`
	ListItems []EnrichedListItem `json:"listItems"`
}

func (ItemAdded) EventName() string   { return EventItemAdded }
func (ItemChecked) EventName() string { return EventItemChecked }
func (ItemRemoved) EventName() string { return EventItemRemoved }
func (ItemUpdated) EventName() string { return EventItemUpdated }
func (ItemsAdded) EventName() string  { return EventItemsAdded }

func (e ItemAdded) Room() int64   { return e.ListID }
func (e ItemChecked) Room() int64 { return e.ListID }
func (e ItemRemoved) Room() int64 { return e.ListID }
func (e ItemUpdated) Room() int64 { return e.ListID }
func (e ItemsAdded) Room() int64  { return e.ListID }

func (ItemAdded) listEvent()   {}
func (ItemChecked) listEvent() {}
func (ItemRemoved) listEvent() {}
func (ItemUpdated) listEvent() {}
func (ItemsAdded) listEvent()  {}

// ListError is sent only to the connection whose request failed.
type ListError struct {
	ListID int64  `json:"listId"`
	Error  string `json:"error"`
}
