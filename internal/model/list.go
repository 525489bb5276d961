package model

import "time"

type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is a known share permission.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

type List struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListShare struct {
	ListID     int64      `json:"list_id"`
	UserID     int64      `json:"user_id"`
	Permission Permission `json:"permission"`
	Username   string     `json:"username,omitempty"`
}

// ListDetail is a list with its materialized items, as returned to a viewer.
type ListDetail struct {
	List
	IsOwner bool               `json:"is_owner"`
	Items   []EnrichedListItem `json:"items"`
}
