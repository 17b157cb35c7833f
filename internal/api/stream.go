package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/itemkeeper/internal/item"
	"github.com/nerrad567/itemkeeper/internal/metrics"
)

// Stream message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is a frame sent to or received from a stream client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub fans item events out to the stream connections of the item's owner.
// It implements item.Publisher.
type Hub struct {
	cfg     config.StreamConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one authenticated stream connection.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	ownerID string
}

// NewHub creates an empty hub.
func NewHub(cfg config.StreamConfig, logger *logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		clients: make(map[*WSClient]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.metrics.SetStreamClients(n)
	h.mu.Unlock()

	h.logger.Debug("stream client connected", "owner_id", client.ownerID, "clients", n)
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes its send
// channel, so shutdown and disconnect cannot close it twice.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.metrics.SetStreamClients(n)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("stream client disconnected", "owner_id", client.ownerID, "clients", n)
}

// PublishItemEvent queues ev for every connection owned by ev.OwnerID.
// Slow clients whose buffer is full miss the event.
func (h *Hub) PublishItemEvent(_ context.Context, ev item.Event) error {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: "item." + ev.Action,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
		Payload:   ev,
	})
	if err != nil {
		return err
	}

	// Snapshot under the hub lock, send without it
	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		if client.ownerID == ev.OwnerID {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		client.trySend(data)
	}
	if len(recipients) > 0 {
		h.logger.Debug("item event streamed", "owner_id", ev.OwnerID, "recipients", len(recipients))
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Queued messages are still flushed by
// each client's write pump before it sends the close frame.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.metrics.SetStreamClients(0)
	h.mu.Unlock()
}

// newUpgrader builds the upgrader for the stream endpoint. Origins follow
// the CORS allow list; upgrade failures are written as error envelopes.
func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			s.writeError(w, r, &Error{Status: status, Code: ErrCodeBadRequest, Message: reason.Error()})
		},
	}
}

// handleEventStream upgrades an authenticated request to a WebSocket that
// receives the caller's own item events.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	// Upgrade reports its own failures through the upgrader's Error hook.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("stream upgrade failed", "error", err)
		return nil
	}

	client := &WSClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		ownerID: claims.Subject,
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump reads client frames until the connection fails.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued frames and keepalive pings.
func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application-level pings. The stream is otherwise
// one-way.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(WSMessage{Type: WSTypeError, Payload: map[string]string{"message": "invalid JSON message"}})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.sendMessage(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.sendMessage(WSMessage{Type: WSTypeError, ID: msg.ID,
			Payload: map[string]string{"message": "unknown message type: " + msg.Type}})
	}
}

func (c *WSClient) sendMessage(msg WSMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data without blocking. A full buffer drops the frame; a
// channel closed by a concurrent disconnect is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}
