package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trophy-arena/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Dispatcher is the coordinator-side command surface: one method per
// inbound event type. The hub/client layer validates framing and hands
// well-formed events here; it never touches queue or session state
// directly.
type Dispatcher interface {
	JoinQueue(p domain.WaitingPlayer) error
	LeaveQueue(connID string)
	RelayAction(sessionID, fromConn string, payload json.RawMessage)
	ReportResult(sessionID, winnerID string, loserRating int)
}

// Client represents a single player's WebSocket connection
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	dispatcher Dispatcher
	send       chan []byte
	logger     *slog.Logger
}

// ClientMessage is the inbound envelope from the client. Fields beyond
// Type are populated per event type.
type ClientMessage struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Rating      int             `json:"rating,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	WinnerID    string          `json:"winner_id,omitempty"`
	LoserRating int             `json:"loser_rating,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, dispatcher Dispatcher, logger *slog.Logger) *Client {
	return &Client{
		id:         uuid.New().String(),
		hub:        hub,
		conn:       conn,
		dispatcher: dispatcher,
		send:       make(chan []byte, 256),
		logger:     logger,
	}
}

// ID returns the opaque connection identifier
func (c *Client) ID() string {
	return c.id
}

// readPump pumps messages from the WebSocket connection to the
// dispatcher. Exiting the loop unregisters the client, which feeds the
// coordinator's disconnect handling.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "conn_id", c.id, "error", err)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.logger.Warn("invalid message format", "conn_id", c.id, "error", err)
			c.sendError("invalid message format")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// handleMessage validates and dispatches an inbound event. Malformed
// events are rejected here, before they can reach the coordinator.
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case domain.EventQueueJoin:
		if msg.PlayerID == "" || msg.DisplayName == "" {
			c.sendError("player_id and display_name are required")
			return
		}
		if msg.Rating < 0 {
			c.sendError("rating must not be negative")
			return
		}
		if !domain.ValidStats(msg.Stats) {
			c.sendError("stats must be valid JSON")
			return
		}
		err := c.dispatcher.JoinQueue(domain.WaitingPlayer{
			PlayerID:    msg.PlayerID,
			ConnID:      c.id,
			DisplayName: msg.DisplayName,
			Rating:      msg.Rating,
			Stats:       msg.Stats,
		})
		if err != nil {
			c.sendError(err.Error())
		}

	case domain.EventQueueLeave:
		c.dispatcher.LeaveQueue(c.id)

	case domain.EventSessionAction:
		if msg.SessionID == "" || len(msg.Payload) == 0 {
			c.sendError("session_id and payload are required")
			return
		}
		c.dispatcher.RelayAction(msg.SessionID, c.id, msg.Payload)

	case domain.EventSessionResult:
		if msg.SessionID == "" || msg.WinnerID == "" {
			c.sendError("session_id and winner_id are required")
			return
		}
		if msg.LoserRating < 0 {
			c.sendError("loser_rating must not be negative")
			return
		}
		c.dispatcher.ReportResult(msg.SessionID, msg.WinnerID, msg.LoserRating)

	default:
		c.logger.Debug("unknown message type", "conn_id", c.id, "type", msg.Type)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same WebSocket frame batch
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	msg := Message{
		Type:      domain.EventError,
		Data:      map[string]string{"error": errMsg},
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

// ServeWs handles WebSocket upgrade requests from players
func ServeWs(hub *Hub, dispatcher Dispatcher, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, dispatcher, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "conn_id", client.id)
}
