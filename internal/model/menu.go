package model

import "time"

type Menu struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MenuItem struct {
	ID       int64    `json:"id"`
	MenuID   int64    `json:"menu_id"`
	ItemID   int64    `json:"item_id"`
	Item     Item     `json:"item"`
	Category Category `json:"category"`
}

type MenuDetail struct {
	Menu
	Items []MenuItem `json:"items"`
}
