package ws

import "testing"

// insert puts a connection into the manager directly, bypassing the register
// channel so tests need no running loop or real socket.
func insert(m *Manager, connID string) *Connection {
	c := &Connection{ConnID: connID, Send: make(chan []byte, 8), manager: m}
	m.mu.Lock()
	m.conns[connID] = c
	m.mu.Unlock()
	return c
}

func TestJoinRoomMovesSessionOutOfLobby(t *testing.T) {
	m := NewManager()
	insert(m, "c1")

	m.JoinLobby("c1")
	m.JoinRoom("c1", "1234")

	if got := m.RoomOf("c1"); got != "1234" {
		t.Errorf("RoomOf = %q, want 1234", got)
	}
	if _, inLobby := m.lobby["c1"]; inLobby {
		t.Error("session should leave the lobby when joining a room")
	}
}

func TestJoinRoomSwitchesChannels(t *testing.T) {
	m := NewManager()
	insert(m, "c1")

	m.JoinRoom("c1", "1111")
	m.JoinRoom("c1", "2222")

	if got := m.RoomOf("c1"); got != "2222" {
		t.Errorf("RoomOf = %q, want 2222", got)
	}
	if members := m.rooms["1111"]; len(members) != 0 {
		t.Errorf("old channel still has %d members", len(members))
	}
}

func TestBroadcastRoomReachesOnlyMembers(t *testing.T) {
	m := NewManager()
	in := insert(m, "in")
	out := insert(m, "out")

	m.JoinRoom("in", "1234")
	m.JoinLobby("out")

	m.BroadcastRoom("1234", []byte("hello"))

	select {
	case msg := <-in.Send:
		if string(msg) != "hello" {
			t.Errorf("member got %q", msg)
		}
	default:
		t.Error("room member received nothing")
	}
	select {
	case msg := <-out.Send:
		t.Errorf("lobby session received room broadcast %q", msg)
	default:
	}
}

func TestDetachRoomReturnsMembersToLobby(t *testing.T) {
	m := NewManager()
	insert(m, "c1")
	insert(m, "c2")
	m.JoinRoom("c1", "1234")
	m.JoinRoom("c2", "1234")

	m.DetachRoom("1234")

	if m.RoomOf("c1") != "" || m.RoomOf("c2") != "" {
		t.Error("detached sessions still bound to the room")
	}
	if len(m.lobby) != 2 {
		t.Errorf("lobby has %d sessions, want 2", len(m.lobby))
	}
	if _, ok := m.rooms["1234"]; ok {
		t.Error("room channel should be gone after detach")
	}
}

func TestLeaveRoomByUser(t *testing.T) {
	m := NewManager()
	c := insert(m, "c1")
	c.UserID = 7
	m.mu.Lock()
	m.byUser[7] = c
	m.mu.Unlock()
	m.JoinRoom("c1", "1234")

	m.LeaveRoomByUser(7)

	if m.RoomOf("c1") != "" {
		t.Error("user's session should have left the room")
	}
	if _, inLobby := m.lobby["c1"]; !inLobby {
		t.Error("user's session should be back in the lobby")
	}
}
