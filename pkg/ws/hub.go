package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and broadcasts messages to lobby groups.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection // player_id -> connection
	lobbies     map[string][]string    // lobby_code -> []player_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		lobbies:     make(map[string][]string),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a player. Returns true when the
// player had a previous live connection (a reconnect).
func (h *Hub) RegisterConnection(playerID string, conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	old, existed := h.connections[playerID]
	if existed {
		old.Close()
	}

	h.connections[playerID] = conn
	h.logger.Info().Str("player_id", playerID).Msg("connection registered")
	return existed
}

// UnregisterConnection removes a connection. The connection is only dropped
// when it is still the registered one, so a reconnect that replaced it is
// left untouched.
func (h *Hub) UnregisterConnection(playerID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[playerID]
	if !exists || current != conn {
		return
	}
	current.Close()
	delete(h.connections, playerID)
	h.logger.Info().Str("player_id", playerID).Msg("connection unregistered")
}

// JoinLobby associates a player with a lobby broadcast group.
func (h *Hub) JoinLobby(lobbyCode, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := h.lobbies[lobbyCode]
	for _, id := range players {
		if id == playerID {
			return
		}
	}
	h.lobbies[lobbyCode] = append(players, playerID)
}

// LeaveLobby removes a player from a lobby broadcast group.
func (h *Hub) LeaveLobby(lobbyCode, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := h.lobbies[lobbyCode]
	for i, id := range players {
		if id == playerID {
			h.lobbies[lobbyCode] = append(players[:i], players[i+1:]...)
			break
		}
	}
	if len(h.lobbies[lobbyCode]) == 0 {
		delete(h.lobbies, lobbyCode)
	}
}

// DropLobby removes an entire lobby broadcast group.
func (h *Hub) DropLobby(lobbyCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobbies, lobbyCode)
}

// BroadcastToLobby sends a message to every player in a lobby.
func (h *Hub) BroadcastToLobby(lobbyCode string, msg Message) error {
	h.mu.RLock()
	players := make([]string, len(h.lobbies[lobbyCode]))
	copy(players, h.lobbies[lobbyCode])
	h.mu.RUnlock()

	var firstErr error
	for _, playerID := range players {
		if err := h.SendToPlayer(playerID, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToPlayer delivers a message to a specific player.
func (h *Hub) SendToPlayer(playerID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[playerID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// IsConnected reports whether a player has a live connection.
func (h *Hub) IsConnected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[playerID]
	return exists
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery. Queue order is preserved, so events
// emitted in order arrive in order.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends messages from the send queue.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Player connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
