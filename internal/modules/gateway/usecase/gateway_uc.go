// Package usecase routes WebSocket commands to the room and user modules.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/domain"
	roomdomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	roomuc "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/usecase"
	userdomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/user/domain"
	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
)

// RoomService is the slice of the room module the gateway drives.
type RoomService interface {
	CreateRoom(ctx context.Context, host roomuc.PlayerRef, name string, settings roomdomain.Settings) (*roomdomain.Room, error)
	JoinRoom(ctx context.Context, code string, player roomuc.PlayerRef) (*roomdomain.Room, error)
	LeaveRoom(ctx context.Context, connID, code string) error
	HandleDisconnect(ctx context.Context, connID, code string) error
	KickPlayer(ctx context.Context, code string, byUserID, targetUserID int64) error
	StartGame(ctx context.Context, code string) error
	AddGameEvent(ctx context.Context, code string, input roomuc.EventInput) error
	RemoveGameEvent(ctx context.Context, code string, eventID string) error
	NextRound(ctx context.Context, code string) error
	SettleGame(ctx context.Context, code string) error
	Disband(ctx context.Context, code string) error
	GetRoom(ctx context.Context, code string) (*roomdomain.Room, error)
	ListRooms(ctx context.Context) ([]*roomdomain.Room, error)
	ListArchives(ctx context.Context, userID int64) ([]*roomdomain.Archive, error)
}

// UserService is the slice of the user module the gateway drives.
type UserService interface {
	Login(ctx context.Context, username string) (*userdomain.User, string, error)
	ValidateToken(ctx context.Context, token string) (int64, string, error)
	GetByID(ctx context.Context, userID int64) (*userdomain.User, error)
}

// Sessions is the connection-state surface the gateway needs from the socket
// manager.
type Sessions interface {
	Bind(connID string, userID int64)
	JoinLobby(connID string)
	LeaveRoom(connID string)
	RoomOf(connID string) string
	BroadcastLobby(message []byte)
}

// GatewayUseCase parses envelopes, authenticates sessions and dispatches
// commands. Auth state lives here, keyed by connection id.
type GatewayUseCase struct {
	rooms    RoomService
	users    UserService
	sessions Sessions
}

func NewGatewayUseCase(rooms RoomService, users UserService, sessions Sessions) *GatewayUseCase {
	return &GatewayUseCase{rooms: rooms, users: users, sessions: sessions}
}

// identityPayload is the LoginRSP/AuthRSP body.
type identityPayload struct {
	UserID          int64   `json:"user_id"`
	Username        string  `json:"username"`
	Token           string  `json:"token,omitempty"`
	CurrentRoomCode *string `json:"current_room_code,omitempty"`
}

// HandleMessage processes one client frame. The returned bytes, when non-nil,
// are the direct reply for this connection; one-way room intents reply through
// state pushes instead and return nil on success.
func (uc *GatewayUseCase) HandleMessage(ctx context.Context, connID string, userID int64, message []byte) []byte {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return errorBRC(ctx, "", domain.ErrCodeBadRequest, "invalid message format")
	}
	if env.Command == "" {
		return errorBRC(ctx, "", domain.ErrCodeBadRequest, "missing command")
	}

	switch env.Command {
	case domain.CmdLoginREQ:
		return uc.handleLogin(ctx, connID, env.Data)
	case domain.CmdAuthREQ:
		return uc.handleAuth(ctx, connID, env.Data)
	}

	if userID == 0 {
		return errorBRC(ctx, env.Command, domain.ErrCodeUnauthenticated, "login first")
	}

	switch env.Command {
	case domain.CmdGetArchivesREQ:
		return uc.handleGetArchives(ctx, userID)
	case domain.CmdCreateRoomREQ:
		return uc.oneWay(ctx, env.Command, uc.handleCreateRoom(ctx, connID, userID, env.Data))
	case domain.CmdJoinRoomREQ:
		return uc.oneWay(ctx, env.Command, uc.handleJoinRoom(ctx, connID, userID, env.Data))
	case domain.CmdLeaveRoomREQ:
		return uc.oneWay(ctx, env.Command, uc.handleLeaveRoom(ctx, connID))
	case domain.CmdStartGameREQ:
		return uc.oneWay(ctx, env.Command, uc.inRoom(connID, func(code string) error {
			return uc.rooms.StartGame(ctx, code)
		}))
	case domain.CmdAddEventREQ:
		return uc.oneWay(ctx, env.Command, uc.handleAddEvent(ctx, connID, env.Data))
	case domain.CmdRemoveEventREQ:
		return uc.oneWay(ctx, env.Command, uc.handleRemoveEvent(ctx, connID, env.Data))
	case domain.CmdNextRoundREQ:
		return uc.oneWay(ctx, env.Command, uc.inRoom(connID, func(code string) error {
			return uc.rooms.NextRound(ctx, code)
		}))
	case domain.CmdSettleREQ:
		return uc.oneWay(ctx, env.Command, uc.inRoom(connID, func(code string) error {
			return uc.rooms.SettleGame(ctx, code)
		}))
	case domain.CmdDisbandREQ:
		return uc.oneWay(ctx, env.Command, uc.handleDisband(ctx, connID, userID))
	case domain.CmdKickREQ:
		return uc.oneWay(ctx, env.Command, uc.handleKick(ctx, connID, userID, env.Data))
	default:
		return errorBRC(ctx, env.Command, domain.ErrCodeBadRequest, fmt.Sprintf("unknown command: %s", env.Command))
	}
}

func (uc *GatewayUseCase) handleLogin(ctx context.Context, connID string, data []byte) []byte {
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return errorBRC(ctx, domain.CmdLoginREQ, domain.ErrCodeBadRequest, "invalid login payload")
	}

	user, token, err := uc.users.Login(ctx, payload.Username)
	if err != nil {
		return errorBRC(ctx, domain.CmdLoginREQ, domain.ErrCodeBadRequest, err.Error())
	}

	uc.sessions.Bind(connID, user.UserID)
	uc.sessions.JoinLobby(connID)

	logger.Info(ctx).Int64("user_id", user.UserID).Str("conn_id", connID).Msg("user logged in")
	return domain.Marshal(domain.CmdLoginRSP, identityPayload{
		UserID:          user.UserID,
		Username:        user.Username,
		Token:           token,
		CurrentRoomCode: user.CurrentRoomCode,
	})
}

func (uc *GatewayUseCase) handleAuth(ctx context.Context, connID string, data []byte) []byte {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return errorBRC(ctx, domain.CmdAuthREQ, domain.ErrCodeBadRequest, "invalid auth payload")
	}

	userID, _, err := uc.users.ValidateToken(ctx, payload.Token)
	if err != nil {
		return errorBRC(ctx, domain.CmdAuthREQ, domain.ErrCodeUnauthenticated, "invalid token")
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return errorBRC(ctx, domain.CmdAuthREQ, domain.ErrCodeUnauthenticated, "unknown user")
	}

	uc.sessions.Bind(connID, user.UserID)
	uc.sessions.JoinLobby(connID)

	logger.Info(ctx).Int64("user_id", user.UserID).Str("conn_id", connID).Msg("session resumed")
	return domain.Marshal(domain.CmdAuthRSP, identityPayload{
		UserID:          user.UserID,
		Username:        user.Username,
		CurrentRoomCode: user.CurrentRoomCode,
	})
}

func (uc *GatewayUseCase) handleGetArchives(ctx context.Context, userID int64) []byte {
	archives, err := uc.rooms.ListArchives(ctx, userID)
	if err != nil {
		return errorBRC(ctx, domain.CmdGetArchivesREQ, domain.ErrCodeInternal, "failed to list archives")
	}
	return domain.Marshal(domain.CmdGetArchivesRSP, map[string]interface{}{
		"archives": archives,
	})
}

func (uc *GatewayUseCase) handleCreateRoom(ctx context.Context, connID string, userID int64, data []byte) error {
	var payload struct {
		Name     string              `json:"name"`
		Settings roomdomain.Settings `json:"settings"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return badRequest(fmt.Errorf("invalid create_room payload: %w", err))
	}

	host, err := uc.playerRef(ctx, connID, userID)
	if err != nil {
		return err
	}
	_, err = uc.rooms.CreateRoom(ctx, host, payload.Name, payload.Settings)
	return err
}

func (uc *GatewayUseCase) handleJoinRoom(ctx context.Context, connID string, userID int64, data []byte) error {
	var payload struct {
		RoomCode string `json:"room_code"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return badRequest(fmt.Errorf("invalid join_room payload: %w", err))
	}
	if payload.RoomCode == "" {
		return badRequest(errors.New("room_code is required"))
	}

	player, err := uc.playerRef(ctx, connID, userID)
	if err != nil {
		return err
	}
	_, err = uc.rooms.JoinRoom(ctx, payload.RoomCode, player)
	return err
}

func (uc *GatewayUseCase) handleLeaveRoom(ctx context.Context, connID string) error {
	code := uc.sessions.RoomOf(connID)
	if code == "" {
		return roomdomain.ErrRoomNotFound
	}
	if err := uc.rooms.LeaveRoom(ctx, connID, code); err != nil {
		return err
	}
	uc.sessions.LeaveRoom(connID)
	return nil
}

func (uc *GatewayUseCase) handleAddEvent(ctx context.Context, connID string, data []byte) error {
	var input roomuc.EventInput
	if err := json.Unmarshal(data, &input); err != nil {
		return badRequest(fmt.Errorf("invalid add_event payload: %w", err))
	}
	return uc.inRoom(connID, func(code string) error {
		return uc.rooms.AddGameEvent(ctx, code, input)
	})
}

func (uc *GatewayUseCase) handleRemoveEvent(ctx context.Context, connID string, data []byte) error {
	var payload struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return badRequest(fmt.Errorf("invalid remove_event payload: %w", err))
	}
	return uc.inRoom(connID, func(code string) error {
		return uc.rooms.RemoveGameEvent(ctx, code, payload.EventID)
	})
}

func (uc *GatewayUseCase) handleDisband(ctx context.Context, connID string, userID int64) error {
	return uc.inRoom(connID, func(code string) error {
		room, err := uc.rooms.GetRoom(ctx, code)
		if err != nil {
			return err
		}
		if room.HostUserID != userID {
			return roomdomain.ErrNotHost
		}
		return uc.rooms.Disband(ctx, code)
	})
}

func (uc *GatewayUseCase) handleKick(ctx context.Context, connID string, userID int64, data []byte) error {
	var payload struct {
		TargetUserID int64 `json:"target_user_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return badRequest(fmt.Errorf("invalid kick payload: %w", err))
	}
	return uc.inRoom(connID, func(code string) error {
		return uc.rooms.KickPlayer(ctx, code, userID, payload.TargetUserID)
	})
}

// HandleDisconnect is called by the socket manager when a session dies while
// joined to a room.
func (uc *GatewayUseCase) HandleDisconnect(ctx context.Context, connID string, roomCode string) {
	if roomCode == "" {
		return
	}
	if err := uc.rooms.HandleDisconnect(ctx, connID, roomCode); err != nil {
		logger.Error(ctx).Err(err).Str("conn_id", connID).Str("room_code", roomCode).
			Msg("disconnect handling failed")
	}
}

// badRequestError marks client input the gateway itself rejected.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

// inRoom resolves the session's room channel and runs fn against it.
func (uc *GatewayUseCase) inRoom(connID string, fn func(code string) error) error {
	code := uc.sessions.RoomOf(connID)
	if code == "" {
		return roomdomain.ErrRoomNotFound
	}
	return fn(code)
}

func (uc *GatewayUseCase) playerRef(ctx context.Context, connID string, userID int64) (roomuc.PlayerRef, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return roomuc.PlayerRef{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return roomuc.PlayerRef{UserID: user.UserID, Name: user.Username, ConnID: connID}, nil
}

// oneWay converts the outcome of a one-way intent into either no reply or an
// ErrorBRC.
func (uc *GatewayUseCase) oneWay(ctx context.Context, command string, err error) []byte {
	if err == nil {
		return nil
	}
	code := errorCode(err)
	if code == domain.ErrCodeInternal {
		logger.Error(ctx).Err(err).Str("command", command).Msg("command failed")
	}
	return errorBRC(ctx, command, code, err.Error())
}

func errorCode(err error) string {
	var br badRequestError
	switch {
	case errors.As(err, &br):
		return domain.ErrCodeBadRequest
	case errors.Is(err, roomdomain.ErrRoomNotFound):
		return domain.ErrCodeRoomNotFound
	case errors.Is(err, roomdomain.ErrRoomFull):
		return domain.ErrCodeRoomFull
	case errors.Is(err, roomdomain.ErrRoomDisbanding):
		return domain.ErrCodeRoomDisbanding
	case errors.Is(err, roomdomain.ErrNotHost):
		return domain.ErrCodeNotHost
	case errors.Is(err, roomdomain.ErrPlayerNotFound):
		return domain.ErrCodePlayerNotFound
	case errors.Is(err, roomdomain.ErrCannotKickHost):
		return domain.ErrCodeCannotKickHost
	case errors.Is(err, roomdomain.ErrGameNotStarted):
		return domain.ErrCodeGameNotStarted
	case errors.Is(err, roomdomain.ErrGameFinished):
		return domain.ErrCodeGameFinished
	case errors.Is(err, roomdomain.ErrEventNotFound):
		return domain.ErrCodeEventNotFound
	default:
		return domain.ErrCodeInternal
	}
}

func errorBRC(ctx context.Context, command, code, message string) []byte {
	logger.Warn(ctx).Str("command", command).Str("error_code", code).Str("error", message).
		Msg("command rejected")
	return domain.Marshal(domain.CmdErrorBRC, domain.ErrorPayload{
		Command: command,
		Code:    code,
		Message: message,
	})
}
