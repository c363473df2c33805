package notifications

import (
	"context"
	"time"

	"monolith/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Socket timings. pingPeriod must stay below pongWait so a live peer always
// answers before its read deadline passes.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// WSHub is the hub side of a client.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one user's socket registered with a hub. Send is closed by the
// hub on unregister.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump drains the connection so control frames are handled and returns
// when the peer goes away. Event delivery is one-way; inbound frames are
// discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.NewWSLogger(c.Hub.Name()).LogError(context.Background(), c.UserID, err, "read")
			}
			return
		}
	}
}

// WritePump writes queued events and keepalive pings until the send buffer
// is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.Conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				_ = write(websocket.CloseMessage, []byte{})
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dropNotice tells a slow client that events were lost and it should
// re-fetch its unread counts and conversations.
var dropNotice = mustEvent(EventsDropped, map[string]string{"reason": "buffer_full"})

// TrySend queues message without blocking. Messages to a full or closed
// client are dropped and counted.
func (c *Client) TrySend(message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	select {
	case c.Send <- dropNotice:
	default:
	}
	return false
}
