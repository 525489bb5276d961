package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/listitem"
	"github.com/dukerupert/nomnom/internal/model"
)

type ListItemHandler struct {
	svc      *listitem.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewListItemHandler(svc *listitem.Service, v *validator.Validate, logger *slog.Logger) *ListItemHandler {
	return &ListItemHandler{svc: svc, validate: v, logger: logger}
}

type addItemRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	CategoryID int64  `json:"category_id" validate:"omitempty,gt=0"`
	Quantity   string `json:"quantity" validate:"max=50"`
	Notes      string `json:"notes" validate:"max=500"`
}

type batchItemRef struct {
	ItemID int64 `json:"item_id" validate:"gt=0"`
}

type batchRequest struct {
	Items []batchItemRef `json:"items" validate:"required,min=1,max=500,dive"`
}

type applyMenuRequest struct {
	ExcludeItemIDs []int64 `json:"exclude_item_ids" validate:"max=500"`
}

type updateItemRequest struct {
	Quantity   *string `json:"quantity" validate:"omitempty,max=50"`
	Notes      *string `json:"notes" validate:"omitempty,max=500"`
	IsChecked  *bool   `json:"is_checked"`
	CategoryID *int64  `json:"category_id" validate:"omitempty,gt=0"`
}

// Add handles POST /api/lists/{id}/items. A new row answers 201, a
// reactivated one 200.
func (h *ListItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "add item", err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "add item", err)
		return
	}

	item, created, err := h.svc.AddItem(auth.UserID(r.Context()), listID, listitem.AddInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, "add item", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, item)
}

// AddBatch handles POST /api/lists/{id}/items/batch.
func (h *ListItemHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "add batch", err)
		return
	}

	var req batchRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "add batch", err)
		return
	}

	ids := make([]int64, len(req.Items))
	for i, ref := range req.Items {
		ids[i] = ref.ItemID
	}

	items, err := h.svc.AddItemsBatch(auth.UserID(r.Context()), listID, ids)
	if err != nil {
		writeError(w, h.logger, "add batch", err)
		return
	}
	if items == nil {
		items = []model.EnrichedListItem{}
	}
	writeJSON(w, http.StatusCreated, items)
}

// ApplyMenu handles POST /api/lists/{id}/menus/{menuId}/add.
func (h *ListItemHandler) ApplyMenu(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "apply menu", err)
		return
	}
	menuID, err := parsePathID(r, "menuId")
	if err != nil {
		writeError(w, h.logger, "apply menu", err)
		return
	}

	var req applyMenuRequest
	if err := decodeJSON(r, h.validate, &req, true); err != nil {
		writeError(w, h.logger, "apply menu", err)
		return
	}

	items, err := h.svc.AddMenuToList(auth.UserID(r.Context()), listID, menuID, req.ExcludeItemIDs)
	if err != nil {
		writeError(w, h.logger, "apply menu", err)
		return
	}
	if items == nil {
		items = []model.EnrichedListItem{}
	}
	writeJSON(w, http.StatusCreated, items)
}

// Update handles PATCH /api/lists/{id}/items/{itemId}.
func (h *ListItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}
	listItemID, err := parsePathID(r, "itemId")
	if err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}

	item, err := h.svc.UpdateListItem(auth.UserID(r.Context()), listID, listItemID, listitem.UpdateInput{
		Quantity:   req.Quantity,
		Notes:      req.Notes,
		IsChecked:  req.IsChecked,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Remove handles DELETE /api/lists/{id}/items/{itemId}.
func (h *ListItemHandler) Remove(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "remove item", err)
		return
	}
	listItemID, err := parsePathID(r, "itemId")
	if err != nil {
		writeError(w, h.logger, "remove item", err)
		return
	}

	if err := h.svc.RemoveListItem(auth.UserID(r.Context()), listID, listItemID); err != nil {
		writeError(w, h.logger, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearChecked handles POST /api/lists/{id}/items/clear-checked.
func (h *ListItemHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "clear checked", err)
		return
	}

	n, err := h.svc.ClearChecked(auth.UserID(r.Context()), listID)
	if err != nil {
		writeError(w, h.logger, "clear checked", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}
