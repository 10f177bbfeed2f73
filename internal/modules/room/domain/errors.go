package domain

import "errors"

// User-facing errors. These are returned verbatim to the initiating client and
// never crash a handler; anything else is a storage failure and is wrapped
// with context before surfacing as a generic failure.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomDisbanding = errors.New("room is being disbanded")
	ErrPlayerNotFound = errors.New("player not found in room")
	ErrCannotKickHost = errors.New("cannot kick the host")
	ErrNotHost        = errors.New("only the host may do that")
	ErrGameFinished   = errors.New("game is already finished")
	ErrGameNotStarted = errors.New("game has not started")
	ErrEventNotFound  = errors.New("event not found in current round")
)
