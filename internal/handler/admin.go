package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// AdminHandler manages accounts. Routes are gated by middleware.RequireAdmin.
type AdminHandler struct {
	db       *sql.DB
	users    *store.UserStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(db *sql.DB, v *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, users: store.NewUserStore(db), validate: v, logger: logger}
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		writeError(w, h.logger, "list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteUser removes an account and everything it owns. Admins cannot
// delete themselves.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "delete user", err)
		return
	}
	if targetID == auth.UserID(r.Context()) {
		writeError(w, h.logger, "delete user", &grocery.ValidationError{Field: "id", Message: "is your own account"})
		return
	}

	err = store.InTx(h.db, func(tx *sql.Tx) error {
		categories := store.NewCategoryStore(tx)
		fallback, err := categories.GetDefaultByName(grocery.FallbackCategory)
		if err != nil {
			return err
		}
		if fallback == nil {
			return store.ErrCategoryNotFound
		}
		if err := categories.ReassignOwned(targetID, fallback.ID); err != nil {
			return err
		}
		return store.NewUserStore(tx).Delete(targetID)
	})
	if err != nil {
		writeError(w, h.logger, "delete user", err)
		return
	}
	h.logger.Info("user deleted", "user_id", targetID, "by", auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, "reset password", err)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "reset password", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, "hash password", err)
		return
	}
	if err := h.users.SetPassword(targetID, string(hash)); err != nil {
		writeError(w, h.logger, "reset password", err)
		return
	}
	h.logger.Info("password reset", "user_id", targetID, "by", auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
