// Package domain defines the room aggregate: the live table, its seats, the
// scored game state and the terminal archive.
package domain

import "time"

// MaxSeats is the number of seats at a table.
const MaxSeats = 4

// SeatedPlayer is one occupied seat: a permanent user bound to an ephemeral
// connection. Reconnecting replaces ConnID in place; a seat is only removed by
// an explicit leave or a kick.
type SeatedPlayer struct {
	ConnID      string `json:"conn_id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	IsConnected bool   `json:"is_connected"`
}

// Room is the central aggregate. It is always read-modify-written as a whole.
type Room struct {
	SchemaVersion int             `json:"schema_version"`
	Code          string          `json:"code"` // 4 ASCII digits, unique among live rooms
	Name          string          `json:"name"`
	HostUserID    int64           `json:"host_user_id"`
	Players       []*SeatedPlayer `json:"players"`
	Game          *GameState      `json:"game"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SeatByUserID returns the seat held by the given permanent user id, or nil.
func (r *Room) SeatByUserID(userID int64) *SeatedPlayer {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// SeatByConnID returns the seat bound to the given connection, or nil.
func (r *Room) SeatByConnID(connID string) *SeatedPlayer {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// IsFull reports whether all seats are taken.
func (r *Room) IsFull() bool {
	return len(r.Players) >= MaxSeats
}

// RemoveSeat removes the seat with the given user id, preserving roster order.
// It reports whether a seat was removed.
func (r *Room) RemoveSeat(userID int64) bool {
	for i, p := range r.Players {
		if p.UserID == userID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// FirstConnectedSeat returns the first seat in roster order that is connected
// and not held by excludeUserID, or nil.
func (r *Room) FirstConnectedSeat(excludeUserID int64) *SeatedPlayer {
	for _, p := range r.Players {
		if p.UserID != excludeUserID && p.IsConnected {
			return p
		}
	}
	return nil
}

// AllDisconnected reports whether no seat has a live connection.
func (r *Room) AllDisconnected() bool {
	for _, p := range r.Players {
		if p.IsConnected {
			return false
		}
	}
	return true
}

// IsStarted reports whether the scored game has players (Lobby -> Active).
func (r *Room) IsStarted() bool {
	return r.Game != nil && len(r.Game.Players) > 0
}
