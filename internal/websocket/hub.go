package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/nomnom/internal/model"
	"github.com/dukerupert/nomnom/internal/store"
)

// Envelope is the frame written to clients for every server event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Gate decides whether a user may subscribe to a list's updates.
type Gate interface {
	CheckAccess(userID, listID int64, requireEdit bool) (*model.List, error)
}

// Hub tracks connected clients and the per-list rooms they have joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}
	gate    Gate
	logger  *slog.Logger
}

// NewHub creates a new Hub. Joins are checked against gate.
func NewHub(gate Gate, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[int64]map[*Client]struct{}),
		gate:    gate,
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and every room it joined, and
// closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for listID := range c.rooms {
		h.leaveLocked(c, listID)
	}
	delete(h.clients, c)
	close(c.send)
}

// Join re-validates the client's access to the list before adding it to the
// list's room. Owners and users holding any share may join.
func (h *Hub) Join(c *Client, listID int64) error {
	if _, err := h.gate.CheckAccess(c.userID, listID, false); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return errClientGone
	}
	room, ok := h.rooms[listID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[listID] = room
	}
	room[c] = struct{}{}
	c.rooms[listID] = struct{}{}
	return nil
}

// Leave removes the client from the list's room. It never fails.
func (h *Hub) Leave(c *Client, listID int64) {
	h.mu.Lock()
	h.leaveLocked(c, listID)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Client, listID int64) {
	delete(c.rooms, listID)
	room, ok := h.rooms[listID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, listID)
	}
}

// Publish sends the event to every client in the event's list room,
// including the client whose request caused it. Delivery is best effort: a
// client whose buffer is full misses the event.
func (h *Hub) Publish(ev model.ListEvent) {
	data, err := json.Marshal(Envelope{Event: ev.EventName(), Data: ev})
	if err != nil {
		h.logger.Error("marshal event", "event", ev.EventName(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[ev.Room()] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping event", "client", c.id, "event", ev.EventName())
		}
	}
}

// sendTo delivers a frame to a single client if it is still registered.
func (h *Hub) sendTo(c *Client, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients subscribed to the list.
func (h *Hub) RoomSize(listID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[listID])
}

var errClientGone = errors.New("client disconnected")

// joinErrorMessage is the text sent back on a denied join. Only store
// errors carry a message safe to show the client.
func joinErrorMessage(err error) string {
	var serr *store.Error
	if errors.As(err, &serr) {
		return serr.Msg
	}
	return "unable to join list"
}
