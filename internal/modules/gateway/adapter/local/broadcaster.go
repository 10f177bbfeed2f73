// Package local adapts the socket manager to the room module's broadcaster
// port for single process deployments.
package local

import (
	"context"

	gwdomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/domain"
	roomdomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

// RoomSessions is the channel-membership surface the broadcaster needs from
// the socket manager.
type RoomSessions interface {
	JoinRoom(connID, roomCode string)
	LeaveRoomByUser(userID int64)
	DetachRoom(roomCode string)
	BroadcastRoom(roomCode string, message []byte)
	SendToUser(userID int64, message []byte)
}

// Broadcaster implements the room module's broadcaster port over the local
// socket manager.
type Broadcaster struct {
	sessions RoomSessions
}

func NewBroadcaster(sessions RoomSessions) *Broadcaster {
	return &Broadcaster{sessions: sessions}
}

// RoomState pushes the full room snapshot. Every connected seat is first
// joined to the room channel; the room module rebinds seats on join and
// reconnect, so this is where channel membership catches up with the roster.
func (b *Broadcaster) RoomState(ctx context.Context, room *roomdomain.Room) {
	for _, seat := range room.Players {
		if seat.IsConnected {
			b.sessions.JoinRoom(seat.ConnID, room.Code)
		}
	}
	b.sessions.BroadcastRoom(room.Code, gwdomain.Marshal(gwdomain.CmdRoomStateBRC, room))
}

func (b *Broadcaster) RoomEnded(ctx context.Context, roomCode, message string) {
	b.sessions.BroadcastRoom(roomCode, gwdomain.Marshal(gwdomain.CmdRoomEndedBRC, map[string]interface{}{
		"room_code": roomCode,
		"message":   message,
	}))
}

func (b *Broadcaster) Kicked(ctx context.Context, userID int64, message string) {
	b.sessions.SendToUser(userID, gwdomain.Marshal(gwdomain.CmdKickedBRC, map[string]interface{}{
		"message": message,
	}))
	b.sessions.LeaveRoomByUser(userID)
}

func (b *Broadcaster) DetachRoom(ctx context.Context, roomCode string) {
	b.sessions.DetachRoom(roomCode)
}
