package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"monolith/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub maps userID -> set of Clients and fans out user events to them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	log        *observability.WSLogger
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[uint]map[*Client]struct{}),
		log:   observability.NewWSLogger("notifications"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notifications" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes client and closes its send buffer.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	close(client.Send)
	h.log.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[userID]
	if !ok {
		return
	}
	data := []byte(message)
	for c := range clients {
		c.TrySend(data)
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType(message)).Inc()
}

// IsOnline reports whether a user has at least one socket on this instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// ConnectionCount returns the number of open sockets on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the Notifier to this hub: it subscribes to the user
// channel pattern and forwards messages to matching connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		userID, err := parseUserChannel(channel)
		if err != nil {
			observability.GlobalLogger.WarnContext(ctx, "invalid notification channel", "channel", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown closes every websocket and rejects further registrations.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, userConns := range h.conns {
		for client := range userConns {
			close(client.Send)
			if client.Conn == nil {
				continue
			}
			_ = client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			if err := client.Conn.Close(); err != nil {
				h.log.LogError(context.Background(), userID, err, "shutdown")
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}

func parseUserChannel(channel string) (uint, error) {
	if !strings.HasPrefix(channel, "notifications:user:") {
		return 0, fmt.Errorf("unexpected channel %q", channel)
	}
	var userID uint
	if _, err := fmt.Sscanf(channel, "notifications:user:%d", &userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// eventType extracts the type field for metrics; unknown payloads count as "raw".
func eventType(message string) string {
	const marker = `"type":"`
	i := strings.Index(message, marker)
	if i < 0 {
		return "raw"
	}
	rest := message[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j > 0 {
		return rest[:j]
	}
	return "raw"
}
