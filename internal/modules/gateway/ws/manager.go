// Package ws owns the WebSocket connection lifecycle: registration, the
// read/write pumps, per-room channels and the lobby set.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
)

type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonReplaced   CloseReason = "replaced_by_new_connection"
	ReasonShutdown   CloseReason = "server_shutdown"
	ReasonBufferFull CloseReason = "buffer_full"
	ReasonTimeout    CloseReason = "timeout"
	ReasonKicked     CloseReason = "kicked"
)

// Connection is one WebSocket session. ConnID is assigned at upgrade time and
// never reused; UserID stays 0 until the session authenticates.
type Connection struct {
	ConnID    string
	UserID    int64
	Conn      *websocket.Conn
	Send      chan []byte
	manager   *Manager
	closeOnce sync.Once
}

// DisconnectHandler is called from the manager loop when a session goes away,
// with the room the socket was joined to ("" when none).
type DisconnectHandler func(connID string, userID int64, roomCode string)

// Manager tracks every live connection, the user each one authenticated as,
// and which room channel (or the lobby) it is joined to.
type Manager struct {
	mu         sync.RWMutex
	conns      map[string]*Connection
	byUser     map[int64]*Connection
	rooms      map[string]map[string]*Connection
	lobby      map[string]*Connection
	roomOf     map[string]string
	register   chan *Connection
	unregister chan *Connection

	onDisconnect DisconnectHandler
}

func NewManager() *Manager {
	return &Manager{
		conns:      make(map[string]*Connection),
		byUser:     make(map[int64]*Connection),
		rooms:      make(map[string]map[string]*Connection),
		lobby:      make(map[string]*Connection),
		roomOf:     make(map[string]string),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
	}
}

// SetDisconnectHandler installs the callback invoked when a session dies.
// Must be called before Run.
func (m *Manager) SetDisconnectHandler(h DisconnectHandler) {
	m.onDisconnect = h
}

// Register wraps an upgraded socket in a Connection and hands it to the
// manager loop.
func (m *Manager) Register(conn *websocket.Conn) *Connection {
	c := &Connection{
		ConnID:  uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, 256),
		manager: m,
	}
	m.register <- c
	return c
}

// Run is the manager loop. Registration and teardown are serialized here so
// the disconnect callback observes a consistent membership state.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.conns[c.ConnID] = c
			m.mu.Unlock()

		case c := <-m.unregister:
			m.mu.Lock()
			_, known := m.conns[c.ConnID]
			var roomCode string
			if known {
				delete(m.conns, c.ConnID)
				if cur, ok := m.byUser[c.UserID]; ok && cur == c {
					delete(m.byUser, c.UserID)
				}
				delete(m.lobby, c.ConnID)
				roomCode = m.roomOf[c.ConnID]
				delete(m.roomOf, c.ConnID)
				if roomCode != "" {
					m.leaveRoomLocked(roomCode, c.ConnID)
				}
			}
			m.mu.Unlock()

			if known {
				c.CloseWithReason(ReasonShutdown, nil)
				if m.onDisconnect != nil {
					m.onDisconnect(c.ConnID, c.UserID, roomCode)
				}
			}
		}
	}
}

// Bind associates the session with an authenticated user. An older session of
// the same user is closed; its later unregister finds byUser already
// repointed and leaves the new binding alone.
func (m *Manager) Bind(connID string, userID int64) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	old, hadOld := m.byUser[userID]
	c.UserID = userID
	m.byUser[userID] = c
	m.mu.Unlock()

	if hadOld && old != c {
		old.CloseWithReason(ReasonReplaced, nil)
	}
}

// JoinRoom moves the session from the lobby into a room channel.
func (m *Manager) JoinRoom(connID, roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return
	}
	if prev := m.roomOf[connID]; prev != "" && prev != roomCode {
		m.leaveRoomLocked(prev, connID)
	}
	delete(m.lobby, connID)
	if m.rooms[roomCode] == nil {
		m.rooms[roomCode] = make(map[string]*Connection)
	}
	m.rooms[roomCode][connID] = c
	m.roomOf[connID] = roomCode
}

// LeaveRoom moves the session back to the lobby.
func (m *Manager) LeaveRoom(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return
	}
	if code := m.roomOf[connID]; code != "" {
		m.leaveRoomLocked(code, connID)
		delete(m.roomOf, connID)
	}
	m.lobby[connID] = c
}

// LeaveRoomByUser moves the session currently bound to the user back to the
// lobby.
func (m *Manager) LeaveRoomByUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byUser[userID]
	if !ok {
		return
	}
	if code := m.roomOf[c.ConnID]; code != "" {
		m.leaveRoomLocked(code, c.ConnID)
		delete(m.roomOf, c.ConnID)
	}
	m.lobby[c.ConnID] = c
}

// JoinLobby subscribes the session to lobby broadcasts.
func (m *Manager) JoinLobby(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[connID]; ok && m.roomOf[connID] == "" {
		m.lobby[connID] = c
	}
}

// DetachRoom unbinds every session still joined to the room channel and puts
// them back in the lobby.
func (m *Manager) DetachRoom(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for connID, c := range m.rooms[roomCode] {
		delete(m.roomOf, connID)
		m.lobby[connID] = c
	}
	delete(m.rooms, roomCode)
}

// RoomOf reports which room channel the session is joined to, "" when none.
func (m *Manager) RoomOf(connID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomOf[connID]
}

func (m *Manager) leaveRoomLocked(roomCode, connID string) {
	if members, ok := m.rooms[roomCode]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, roomCode)
		}
	}
}

// BroadcastRoom sends a message to every session in the room channel.
func (m *Manager) BroadcastRoom(roomCode string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.rooms[roomCode] {
		c.trySend(message)
	}
}

// BroadcastLobby sends a message to every session in the lobby.
func (m *Manager) BroadcastLobby(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.lobby {
		c.trySend(message)
	}
}

// SendToConn sends a message to one session.
func (m *Manager) SendToConn(connID string, message []byte) {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()

	if ok {
		c.sendWithTimeout(message)
	}
}

// SendToUser sends a message to the session the user is currently bound to.
func (m *Manager) SendToUser(userID int64, message []byte) {
	m.mu.RLock()
	c, ok := m.byUser[userID]
	m.mu.RUnlock()

	if ok {
		c.sendWithTimeout(message)
	}
}

// Shutdown closes every connection.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.conns {
		c.CloseWithReason(ReasonShutdown, nil)
	}
}

func (c *Connection) trySend(message []byte) {
	select {
	case c.Send <- message:
	default:
		// Buffer full, drop the client. Cleanup happens through the
		// unregister path when its pumps exit.
		c.CloseWithReason(ReasonBufferFull, nil)
	}
}

func (c *Connection) sendWithTimeout(message []byte) {
	select {
	case c.Send <- message:
		return
	default:
	}

	select {
	case c.Send <- message:
	case <-time.After(5 * time.Second):
		// Client is too slow; close rather than block the server.
		c.CloseWithReason(ReasonTimeout, nil)
	}
}

// CloseWithReason closes the underlying socket once.
func (c *Connection) CloseWithReason(r CloseReason, err error) {
	c.closeOnce.Do(func() {
		evt := logger.Info(context.Background())
		if err != nil {
			evt = logger.Error(context.Background()).Err(err)
		}
		evt.Str("conn_id", c.ConnID).
			Int64("user_id", c.UserID).
			Str("reason", string(r)).
			Msg("ws connection closed")
		c.Conn.Close()
	})
}

// WritePump pumps messages from the send channel to the socket.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping period
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}
		}
	}
}

// ReadPump pumps messages from the socket to the handler.
func (c *Connection) ReadPump(handleMessage func(connID string, userID int64, message []byte)) {
	var readErr error
	defer func() {
		c.manager.unregister <- c
		c.CloseWithReason(ReasonReadError, readErr)
	}()

	c.Conn.SetReadLimit(8192)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)) // Pong wait
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				readErr = err
			}
			break
		}

		handleMessage(c.ConnID, c.UserID, message)
	}
}
