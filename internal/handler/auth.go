package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

type AuthHandler struct {
	users    *store.UserStore
	tokens   *auth.TokenManager
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAuthHandler(users *store.UserStore, tokens *auth.TokenManager, v *validator.Validate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, validate: v, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	// bcrypt ignores input past 72 bytes.
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	username := strings.TrimSpace(req.Username)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, "hash password", err)
		return
	}

	u, err := h.users.Create(username, string(hash))
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	h.logger.Info("user registered", "user_id", u.ID)
	h.respondWithToken(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, "login", err)
		return
	}

	u, err := h.users.GetByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}
	if u == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.logger.Error("compare password", "user_id", u.ID, "error", err)
		}
		writeErrorMsg(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	h.respondWithToken(w, http.StatusOK, u)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get user", err)
		return
	}
	if u == nil {
		writeError(w, h.logger, "get user", store.ErrUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, u *model.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		writeError(w, h.logger, "issue token", err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: u})
}
