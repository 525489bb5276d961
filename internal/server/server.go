package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/handler"
	"github.com/dukerupert/nomnom/internal/listitem"
	"github.com/dukerupert/nomnom/internal/middleware"
	"github.com/dukerupert/nomnom/internal/store"
	ws "github.com/dukerupert/nomnom/internal/websocket"
)

// Options carries the settings the server needs from configuration.
// Rate limits are requests per minute; zero disables a limit.
type Options struct {
	Tokens         *auth.TokenManager
	AllowedOrigins []string
	AdminUsers     []string
	AuthRateLimit  int
	WriteRateLimit int
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.TokenManager
	origins     []string
	admins      []string
	authLimit   middleware.Limit
	writeLimit  middleware.Limit
	listItemH   *handler.ListItemHandler
	listH       *handler.ListHandler
	menuH       *handler.MenuHandler
	libraryH    *handler.LibraryHandler
	adminH      *handler.AdminHandler
	authH       *handler.AuthHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	listStore := store.NewListStore(db)
	userStore := store.NewUserStore(db)
	itemStore := store.NewItemStore(db)
	menuStore := store.NewMenuStore(db)

	hub := ws.NewHub(listStore, logger.With("component", "websocket"))
	svc := listitem.NewService(db, hub, logger.With("component", "listitem"))
	v := handler.NewValidator()

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      opts.Tokens,
		origins:     opts.AllowedOrigins,
		admins:      opts.AdminUsers,
		authLimit:   middleware.Limit{Requests: opts.AuthRateLimit, Window: time.Minute},
		writeLimit:  middleware.Limit{Requests: opts.WriteRateLimit, Window: time.Minute},
		listItemH:   handler.NewListItemHandler(svc, v, logger.With("component", "list_item")),
		listH:       handler.NewListHandler(listStore, userStore, svc, v, logger.With("component", "list")),
		menuH:       handler.NewMenuHandler(menuStore, itemStore, v, logger.With("component", "menu")),
		libraryH:    handler.NewLibraryHandler(db, svc, v, logger.With("component", "library")),
		adminH:      handler.NewAdminHandler(db, v, logger.With("component", "admin")),
		authH:       handler.NewAuthHandler(userStore, opts.Tokens, v, logger.With("component", "auth")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Hub returns the live-update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter shared by the auth and write limits.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens)
	writeLimit := middleware.RateLimit(s.rateLimiter, middleware.ByUser, s.writeLimit)
	outerMux.Handle("/", authMiddleware(writeLimit(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "clients": s.hub.ClientCount()}
	code := http.StatusOK
	if version, err := database.Version(s.db); err != nil {
		s.logger.Error("health check", "error", err)
		status["status"] = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		status["schema_version"] = version
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByClientIP, s.authLimit)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Lists and sharing
	mux.HandleFunc("GET /api/lists", s.listH.List)
	mux.HandleFunc("POST /api/lists", s.listH.Create)
	mux.HandleFunc("GET /api/lists/{id}", s.listH.Get)
	mux.HandleFunc("PUT /api/lists/{id}", s.listH.Rename)
	mux.HandleFunc("DELETE /api/lists/{id}", s.listH.Delete)
	mux.HandleFunc("GET /api/lists/{id}/shares", s.listH.ListShares)
	mux.HandleFunc("POST /api/lists/{id}/shares", s.listH.Share)
	mux.HandleFunc("DELETE /api/lists/{id}/shares/{userId}", s.listH.Unshare)

	// List items
	mux.HandleFunc("POST /api/lists/{id}/items", s.listItemH.Add)
	mux.HandleFunc("POST /api/lists/{id}/items/batch", s.listItemH.AddBatch)
	mux.HandleFunc("POST /api/lists/{id}/items/clear-checked", s.listItemH.ClearChecked)
	mux.HandleFunc("PATCH /api/lists/{id}/items/{itemId}", s.listItemH.Update)
	mux.HandleFunc("DELETE /api/lists/{id}/items/{itemId}", s.listItemH.Remove)
	mux.HandleFunc("POST /api/lists/{id}/menus/{menuId}/add", s.listItemH.ApplyMenu)

	// Menus
	mux.HandleFunc("GET /api/menus", s.menuH.List)
	mux.HandleFunc("POST /api/menus", s.menuH.Create)
	mux.HandleFunc("GET /api/menus/{id}", s.menuH.Get)
	mux.HandleFunc("PUT /api/menus/{id}", s.menuH.Update)
	mux.HandleFunc("DELETE /api/menus/{id}", s.menuH.Delete)

	// Library
	mux.HandleFunc("GET /api/items", s.libraryH.Items)
	mux.HandleFunc("PUT /api/items/{id}", s.libraryH.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.libraryH.DeleteItem)
	mux.HandleFunc("GET /api/categories", s.libraryH.Categories)
	mux.HandleFunc("POST /api/categories", s.libraryH.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.libraryH.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.libraryH.DeleteCategory)

	// Admin
	admin := middleware.RequireAdmin(s.admins)
	mux.Handle("GET /api/admin/users", admin(http.HandlerFunc(s.adminH.Users)))
	mux.Handle("DELETE /api/admin/users/{id}", admin(http.HandlerFunc(s.adminH.DeleteUser)))
	mux.Handle("POST /api/admin/users/{id}/reset-password", admin(http.HandlerFunc(s.adminH.ResetPassword)))

	// WebSocket
	authenticated := func(r *http.Request) (int64, bool) {
		id := auth.UserID(r.Context())
		return id, id != 0
	}
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, authenticated, s.origins, s.logger.With("component", "websocket")))
}
