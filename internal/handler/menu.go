package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

type MenuHandler struct {
	menus    *store.MenuStore
	items    *store.ItemStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewMenuHandler(menus *store.MenuStore, items *store.ItemStore, v *validator.Validate, logger *slog.Logger) *MenuHandler {
	return &MenuHandler{menus: menus, items: items, validate: v, logger: logger}
}

type createMenuRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	ItemIDs []int64 `json:"item_ids" validate:"max=500,dive,gt=0"`
}

type updateMenuRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	ItemIDs []int64 `json:"item_ids" validate:"omitempty,max=500,dive,gt=0"`
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createMenuRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "create menu", err)
		return
	}
	name := grocery.CleanName(req.Name)
	if name == "" {
		writeError(w, h.logger, "create menu", &grocery.ValidationError{Field: "name", Message: "is required"})
		return
	}
	if err := h.checkItems(userID, req.ItemIDs); err != nil {
		writeError(w, h.logger, "create menu", err)
		return
	}

	m, err := h.menus.Create(name, userID, req.ItemIDs)
	if err != nil {
		writeError(w, h.logger, "create menu", err)
		return
	}
	h.writeDetail(w, http.StatusCreated, m)
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	menus, err := h.menus.ListOwned(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list menus", err)
		return
	}
	writeJSON(w, http.StatusOK, menus)
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "get menu", err)
		return
	}

	m, err := h.menus.GetOwned(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get menu", err)
		return
	}
	if m == nil {
		writeError(w, h.logger, "get menu", store.ErrMenuNotFound)
		return
	}
	h.writeDetail(w, http.StatusOK, m)
}

// Update renames the menu and/or replaces its items. Omitted fields are kept;
// an explicit empty item_ids clears the menu.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "update menu", err)
		return
	}

	var req updateMenuRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "update menu", err)
		return
	}
	if req.Name != nil {
		name := grocery.CleanName(*req.Name)
		if name == "" {
			writeError(w, h.logger, "update menu", &grocery.ValidationError{Field: "name", Message: "is required"})
			return
		}
		req.Name = &name
	}
	if err := h.checkItems(userID, req.ItemIDs); err != nil {
		writeError(w, h.logger, "update menu", err)
		return
	}

	m, err := h.menus.Update(id, userID, req.Name, req.ItemIDs)
	if err != nil {
		writeError(w, h.logger, "update menu", err)
		return
	}
	h.writeDetail(w, http.StatusOK, m)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "delete menu", err)
		return
	}

	if err := h.menus.Delete(id, auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, "delete menu", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// checkItems requires every id to be a system item or one of the user's own.
func (h *MenuHandler) checkItems(userID int64, ids []int64) error {
	for _, id := range ids {
		it, err := h.items.GetByID(id)
		if err != nil {
			return err
		}
		if it == nil || !(it.IsSystem() || it.OwnedBy(userID)) {
			return store.ErrItemNotFound
		}
	}
	return nil
}

func (h *MenuHandler) writeDetail(w http.ResponseWriter, status int, m *model.Menu) {
	items, err := h.menus.Items(m.ID)
	if err != nil {
		writeError(w, h.logger, "menu items", err)
		return
	}
	writeJSON(w, status, model.MenuDetail{Menu: *m, Items: items})
}
