package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/listitem"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// LibraryHandler serves the item library and categories.
type LibraryHandler struct {
	db         *sql.DB
	items      *store.ItemStore
	categories *store.CategoryStore
	svc        *listitem.Service
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewLibraryHandler(db *sql.DB, svc *listitem.Service, v *validator.Validate, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		db:         db,
		items:      store.NewItemStore(db),
		categories: store.NewCategoryStore(db),
		svc:        svc,
		validate:   v,
		logger:     logger,
	}
}

type updateLibraryItemRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=200"`
	CategoryID *int64  `json:"category_id" validate:"omitempty,gt=0"`
}

type createCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type updateCategoryRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

// Items lists the user's own items plus unshadowed system items.
func (h *LibraryHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdateItem renames or recategorizes one of the caller's items. System
// items and other users' items are not found.
func (h *LibraryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}
	var req updateLibraryItemRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}

	it, err := h.svc.UpdateLibraryItem(auth.UserID(r.Context()), itemID, listitem.LibraryInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeError(w, h.logger, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *LibraryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "delete item", err)
		return
	}
	if err := h.svc.DeleteLibraryItem(auth.UserID(r.Context()), itemID); err != nil {
		writeError(w, h.logger, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *LibraryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.ListVisible(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list categories", err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *LibraryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "create category", err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, h.logger, "create category", &grocery.ValidationError{Field: "name", Message: "is required"})
		return
	}

	c, err := h.categories.Create(name, req.Color, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCategory edits one of the caller's categories. Default categories
// accept a color change only.
func (h *LibraryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "update category", err)
		return
	}
	var req updateCategoryRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "update category", err)
		return
	}
	if req.Name == nil && req.Color == nil {
		writeError(w, h.logger, "update category", listitem.ErrNoUpdates)
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, h.logger, "update category", &grocery.ValidationError{Field: "name", Message: "is required"})
			return
		}
		req.Name = &name
	}

	c, err := h.categories.Update(id, auth.UserID(r.Context()), req.Name, req.Color)
	if err != nil {
		writeError(w, h.logger, "update category", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCategory removes one of the caller's categories. Its items move to
// the default fallback category.
func (h *LibraryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "delete category", err)
		return
	}
	userID := auth.UserID(r.Context())

	err = store.InTx(h.db, func(tx *sql.Tx) error {
		categories := store.NewCategoryStore(tx)
		fallback, err := categories.GetDefaultByName(grocery.FallbackCategory)
		if err != nil {
			return err
		}
		if fallback == nil {
			return store.ErrCategoryNotFound
		}
		return categories.Delete(id, userID, fallback.ID)
	})
	if err != nil {
		writeError(w, h.logger, "delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
