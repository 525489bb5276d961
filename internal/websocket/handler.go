package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Authenticator resolves the user behind an upgrade request.
type Authenticator func(r *http.Request) (userID int64, ok bool)

// HandleWebSocket returns an HTTP handler that authenticates the request,
// upgrades it to a WebSocket, and runs it as a Hub client. An empty
// originPatterns accepts any origin.
func HandleWebSocket(hub *Hub, authenticate Authenticator, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
	if len(originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(r)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
