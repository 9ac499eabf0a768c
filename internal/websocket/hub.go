package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message is the outbound envelope sent to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub is the connection registry: it maps opaque connection ids to
// established client sessions and owns registration, teardown and
// outbound delivery. Messages for a connection go through that client's
// buffered send channel, so delivery order per connection matches send
// order.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	unregister chan *Client
	stop       chan struct{}

	// Invoked after a client is unregistered, outside the hub lock.
	// Wired to the coordinator's disconnect handling.
	onDisconnect func(connID string)

	logger *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// SetDisconnectHandler registers the callback invoked when a connection
// goes away. Must be called before Run.
func (h *Hub) SetDisconnectHandler(fn func(connID string)) {
	h.onDisconnect = fn
}

// Run starts the hub's teardown loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client.id]
			if known {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()

			if known {
				h.logger.Debug("client unregistered", "conn_id", client.id, "total", total)
				if h.onDisconnect != nil {
					h.onDisconnect(client.id)
				}
			}

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub stopped")
			return
		}
	}
}

// Stop shuts down the hub and closes all client connections
func (h *Hub) Stop() {
	close(h.stop)
}

// Register adds a client to the hub. Registration is synchronous so the
// connection is routable before its read and write pumps start.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", "conn_id", client.id, "total", total)
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Send delivers an event to a single connection. Unknown connections
// are dropped; a full send buffer drops the message with a warning
// rather than blocking the caller.
func (h *Hub) Send(connID, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("failed to marshal outbound message", "type", msgType, "error", err)
		return
	}

	// The read lock is held across the channel send so teardown, which
	// closes the channel under the write lock, cannot interleave.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.Warn("client send buffer full, dropping message",
			"conn_id", connID, "type", msgType)
	}
}

// TotalConnections returns the number of registered connections
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
