package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dukerupert/nomnom/internal/model"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// Client messages.
const (
	eventJoin  = "list:join"
	eventLeave = "list:leave"
)

type clientMessage struct {
	Event  string `json:"event"`
	ListID int64  `json:"listId"`
}

// Client represents a single authenticated WebSocket connection.
type Client struct {
	id     string
	userID int64
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	rooms  map[int64]struct{} // guarded by hub.mu
}

// NewClient creates a Client for userID tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, userID int64) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		rooms:  make(map[int64]struct{}),
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.hub.logger.Debug("client connected", "client", c.id, "user_id", c.userID)
	defer c.hub.logger.Debug("client disconnected", "client", c.id, "user_id", c.userID)

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump handles join/leave requests until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed client message", "client", c.id, "error", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMessage) {
	switch msg.Event {
	case eventJoin:
		if err := c.hub.Join(c, msg.ListID); err != nil {
			c.hub.logger.Info("join denied", "client", c.id, "user_id", c.userID, "list_id", msg.ListID, "error", err)
			c.hub.sendTo(c, model.EventListError, model.ListError{ListID: msg.ListID, Error: joinErrorMessage(err)})
		}
	case eventLeave:
		c.hub.Leave(c, msg.ListID)
	default:
		c.hub.logger.Debug("unknown client event", "client", c.id, "event", msg.Event)
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
