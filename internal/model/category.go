package model

// Category groups library items. Default categories have a nil UserID and
// are visible to everyone.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsDefault bool   `json:"is_default"`
	UserID    *int64 `json:"user_id"`
}
