package model

// Item is a library entry. A nil CreatedBy marks a system item, which is a
// template that gets cloned into a user's library on first use.
type Item struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
	CreatedBy  *int64 `json:"created_by"`
}

// IsSystem reports whether the item belongs to the global catalog.
func (i *Item) IsSystem() bool {
	return i.CreatedBy == nil
}

// OwnedBy reports whether userID created the item.
func (i *Item) OwnedBy(userID int64) bool {
	return i.CreatedBy != nil && *i.CreatedBy == userID
}
