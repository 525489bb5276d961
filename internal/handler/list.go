package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/listitem"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// ListHandler serves list records and their shares.
type ListHandler struct {
	lists    *store.ListStore
	users    *store.UserStore
	svc      *listitem.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewListHandler(lists *store.ListStore, users *store.UserStore, svc *listitem.Service, v *validator.Validate, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: lists, users: users, svc: svc, validate: v, logger: logger}
}

type createListRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type shareRequest struct {
	Username   string `json:"username" validate:"required,max=50"`
	Permission string `json:"permission" validate:"omitempty,oneof=view edit"`
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "create list", err)
		return
	}
	name := grocery.CleanName(req.Name)
	if name == "" {
		writeError(w, h.logger, "create list", &grocery.ValidationError{Field: "name", Message: "is required"})
		return
	}

	l, err := h.lists.Create(name, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "create list", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list lists", err)
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	writeJSON(w, http.StatusOK, lists)
}

// Get returns the list with its materialized items.
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "get list", err)
		return
	}

	detail, err := h.svc.GetList(auth.UserID(r.Context()), listID)
	if err != nil {
		writeError(w, h.logger, "get list", err)
		return
	}
	if detail.Items == nil {
		detail.Items = []model.EnrichedListItem{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ListHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "list shares", err)
		return
	}
	if _, err := h.lists.CheckOwner(auth.UserID(r.Context()), listID); err != nil {
		writeError(w, h.logger, "list shares", err)
		return
	}

	shares, err := h.lists.ListShares(listID)
	if err != nil {
		writeError(w, h.logger, "list shares", err)
		return
	}
	if shares == nil {
		shares = []model.ListShare{}
	}
	writeJSON(w, http.StatusOK, shares)
}

// Share grants a user access to the list, or changes their permission.
// Permission defaults to edit.
func (h *ListHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "share list", err)
		return
	}

	var req shareRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "share list", err)
		return
	}
	perm := model.Permission(req.Permission)
	if perm == "" {
		perm = model.PermissionEdit
	}

	if _, err := h.lists.CheckOwner(userID, listID); err != nil {
		writeError(w, h.logger, "share list", err)
		return
	}

	target, err := h.users.GetByUsername(req.Username)
	if err != nil {
		writeError(w, h.logger, "share list", err)
		return
	}
	if target == nil {
		writeError(w, h.logger, "share list", store.ErrUserNotFound)
		return
	}
	if target.ID == userID {
		writeError(w, h.logger, "share list", &grocery.ValidationError{Field: "username", Message: "is the list owner"})
		return
	}

	if err := h.lists.Share(listID, target.ID, perm); err != nil {
		writeError(w, h.logger, "share list", err)
		return
	}
	h.logger.Info("list shared", "list_id", listID, "user_id", target.ID, "permission", perm)
	writeJSON(w, http.StatusOK, model.ListShare{
		ListID:     listID,
		UserID:     target.ID,
		Permission: perm,
		Username:   target.Username,
	})
}

func (h *ListHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "unshare list", err)
		return
	}
	targetID, err := parsePathID(r, "userId")
	if err != nil {
		writeError(w, h.logger, "unshare list", err)
		return
	}

	if _, err := h.lists.CheckOwner(auth.UserID(r.Context()), listID); err != nil {
		writeError(w, h.logger, "unshare list", err)
		return
	}
	if err := h.lists.Unshare(listID, targetID); err != nil {
		writeError(w, h.logger, "unshare list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Rename is owner-only.
func (h *ListHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "rename list", err)
		return
	}
	var req createListRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "rename list", err)
		return
	}
	name := grocery.CleanName(req.Name)
	if name == "" {
		writeError(w, h.logger, "rename list", &grocery.ValidationError{Field: "name", Message: "is required"})
		return
	}

	if _, err := h.lists.CheckOwner(userID, listID); err != nil {
		writeError(w, h.logger, "rename list", err)
		return
	}
	l, err := h.lists.Rename(listID, name)
	if err != nil {
		writeError(w, h.logger, "rename list", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Delete removes the list with its items and shares. Owner-only.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "delete list", err)
		return
	}
	if _, err := h.lists.CheckOwner(auth.UserID(r.Context()), listID); err != nil {
		writeError(w, h.logger, "delete list", err)
		return
	}
	if err := h.lists.Delete(listID); err != nil {
		writeError(w, h.logger, "delete list", err)
		return
	}
	h.logger.Info("list deleted", "list_id", listID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
