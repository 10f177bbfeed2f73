// Package domain defines the wire envelope and command vocabulary spoken over
// the WebSocket.
package domain

import "encoding/json"

// Envelope is the framing for every client and server message. REQ commands
// with a matching RSP are request/response; room intents are one-way and are
// answered by state pushes (or an ErrorBRC).
type Envelope struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client commands.
const (
	CmdLoginREQ       = "LoginREQ"
	CmdAuthREQ        = "AuthREQ"
	CmdGetArchivesREQ = "GetArchivesREQ"

	CmdCreateRoomREQ  = "CreateRoomREQ"
	CmdJoinRoomREQ    = "JoinRoomREQ"
	CmdLeaveRoomREQ   = "LeaveRoomREQ"
	CmdStartGameREQ   = "StartGameREQ"
	CmdAddEventREQ    = "AddEventREQ"
	CmdRemoveEventREQ = "RemoveEventREQ"
	CmdNextRoundREQ   = "NextRoundREQ"
	CmdSettleREQ      = "SettleREQ"
	CmdDisbandREQ     = "DisbandREQ"
	CmdKickREQ        = "KickREQ"
)

// Server responses and pushes.
const (
	CmdLoginRSP       = "LoginRSP"
	CmdAuthRSP        = "AuthRSP"
	CmdGetArchivesRSP = "GetArchivesRSP"

	CmdRoomStateBRC = "RoomStateBRC"
	CmdLobbyBRC     = "LobbyBRC"
	CmdRoomEndedBRC = "RoomEndedBRC"
	CmdKickedBRC    = "KickedBRC"
	CmdErrorBRC     = "ErrorBRC"
)

// Error codes carried in ErrorBRC.
const (
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeRoomFull        = "room_full"
	ErrCodeRoomDisbanding  = "room_disbanding"
	ErrCodeNotHost         = "not_host"
	ErrCodePlayerNotFound  = "player_not_found"
	ErrCodeCannotKickHost  = "cannot_kick_host"
	ErrCodeGameNotStarted  = "game_not_started"
	ErrCodeGameFinished    = "game_finished"
	ErrCodeEventNotFound   = "event_not_found"
	ErrCodeInternal        = "internal_error"
)

// ErrorPayload is the body of an ErrorBRC.
type ErrorPayload struct {
	Command string `json:"command"` // the client command that failed
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LobbyRoom is one row in a LobbyBRC summary.
type LobbyRoom struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	HostName  string `json:"host_name"`
	Seats     int    `json:"seats"`
	MaxSeats  int    `json:"max_seats"`
	IsStarted bool   `json:"is_started"`
}

// Marshal wraps a payload in an Envelope and encodes it. Payloads are built by
// this process, so an encode failure is a bug; it degrades to an empty
// envelope rather than a panic.
func Marshal(command string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	out, err := json.Marshal(Envelope{Command: command, Data: data})
	if err != nil {
		return []byte(`{"command":"` + command + `"}`)
	}
	return out
}
