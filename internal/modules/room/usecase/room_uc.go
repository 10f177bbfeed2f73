// Package usecase implements the room lifecycle manager: every state
// transition of a live room, the deletion lock, and archival on settlement.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/scoring"
	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
	"github.com/google/uuid"
)

// UserDirectory is the slice of the user module the lifecycle manager needs:
// keeping each user's current-room pointer in sync with the roster.
type UserDirectory interface {
	UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error
}

// PlayerRef identifies a connecting player: permanent identity plus the
// ephemeral socket.
type PlayerRef struct {
	UserID int64
	Name   string
	ConnID string
}

// EventInput is the single validation boundary for score-affecting client
// input. Fields are trusted beyond arithmetic sanity; a legality checker can
// be inserted here later without touching the ledger.
type EventInput struct {
	Kind            domain.EventKind `json:"kind"`
	WinnerID        int64            `json:"winner_id"`
	DiscarderID     int64            `json:"discarder_id"`
	ActivePlayerIDs []int64          `json:"active_player_ids"`
	DeclarerID      int64            `json:"declarer_id"`
	MeldKind        domain.MeldKind  `json:"meld_kind"`
	TargetIDs       []int64          `json:"target_ids"`
	FanTypes        []domain.FanType `json:"fan_types"`
	GangCount       int              `json:"gang_count"`
}

const codeAttempts = 50

// RoomUseCase drives every room state transition. Mutating operations on the
// same room are serialized by a per-room mutex; the deletion lock additionally
// fences the window between a disband deciding to delete and the delete
// completing.
type RoomUseCase struct {
	roomRepo    domain.RoomRepository
	archiveRepo domain.ArchiveRepository
	users       UserDirectory
	broadcaster domain.Broadcaster
	locks       *DeletionLock

	// defaults fill fields the client omitted at room creation.
	defaults domain.Settings

	mu      sync.Mutex
	perRoom map[string]*sync.Mutex
	rnd     *rand.Rand
	rndMu   sync.Mutex
}

// NewRoomUseCase creates a new room lifecycle manager.
func NewRoomUseCase(
	roomRepo domain.RoomRepository,
	archiveRepo domain.ArchiveRepository,
	users UserDirectory,
	broadcaster domain.Broadcaster,
) *RoomUseCase {
	return &RoomUseCase{
		roomRepo:    roomRepo,
		archiveRepo: archiveRepo,
		users:       users,
		broadcaster: broadcaster,
		locks:       NewDeletionLock(),
		perRoom:     make(map[string]*sync.Mutex),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetDefaultSettings installs the table defaults applied when a client omits
// settings at room creation. Call during wiring, before serving traffic.
func (uc *RoomUseCase) SetDefaultSettings(s domain.Settings) {
	uc.defaults = s
}

// lockRoom serializes mutating operations per room and returns the unlock.
func (uc *RoomUseCase) lockRoom(code string) func() {
	uc.mu.Lock()
	m, ok := uc.perRoom[code]
	if !ok {
		m = &sync.Mutex{}
		uc.perRoom[code] = m
	}
	uc.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (uc *RoomUseCase) loadRoom(ctx context.Context, code string) (*domain.Room, error) {
	room, err := uc.roomRepo.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// CreateRoom generates a unique room code, seats the host as the sole
// connected player and persists the fresh room.
func (uc *RoomUseCase) CreateRoom(ctx context.Context, host PlayerRef, name string, settings domain.Settings) (*domain.Room, error) {
	code, err := uc.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("%s's table", host.Name)
	}
	if settings.MaxFan <= 0 {
		settings.MaxFan = uc.defaults.MaxFan
	}
	if settings.PricePerFan <= 0 {
		settings.PricePerFan = uc.defaults.PricePerFan
	}
	if settings.PricePerFan <= 0 {
		settings.PricePerFan = 1
	}

	room := &domain.Room{
		SchemaVersion: domain.SchemaVersion,
		Code:          code,
		Name:          name,
		HostUserID:    host.UserID,
		Players: []*domain.SeatedPlayer{{
			ConnID:      host.ConnID,
			UserID:      host.UserID,
			Name:        host.Name,
			IsConnected: true,
		}},
		Game:      domain.NewGameState(settings),
		CreatedAt: time.Now(),
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return nil, fmt.Errorf("persist new room %s: %w", code, err)
	}
	if err := uc.users.UpdateCurrentRoom(ctx, host.UserID, &code); err != nil {
		logger.Error(ctx).Err(err).Int64("user_id", host.UserID).Str("room_code", code).
			Msg("failed to update host current room")
	}

	logger.Info(ctx).
		Str("room_code", code).
		Int64("host_user_id", host.UserID).
		Int("max_fan", settings.MaxFan).
		Msg("room created")

	uc.broadcaster.RoomState(ctx, room)
	return room, nil
}

// generateCode retries random 4-digit codes until one is free among live
// rooms.
func (uc *RoomUseCase) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		uc.rndMu.Lock()
		code := fmt.Sprintf("%04d", uc.rnd.Intn(10000))
		uc.rndMu.Unlock()

		existing, err := uc.roomRepo.Get(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code %s: %w", code, err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", errors.New("no free room code after repeated attempts")
}

// JoinRoom seats a player, or reconnects them when their permanent id is
// already on the roster (the seat's connection is replaced in place, never
// duplicated).
func (uc *RoomUseCase) JoinRoom(ctx context.Context, code string, player PlayerRef) (*domain.Room, error) {
	if uc.locks.Held(code) {
		return nil, domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if seat := room.SeatByUserID(player.UserID); seat != nil {
		seat.ConnID = player.ConnID
		seat.IsConnected = true
		logger.Info(ctx).Str("room_code", code).Int64("user_id", player.UserID).Msg("player reconnected")
	} else {
		if room.IsFull() {
			return nil, domain.ErrRoomFull
		}
		room.Players = append(room.Players, &domain.SeatedPlayer{
			ConnID:      player.ConnID,
			UserID:      player.UserID,
			Name:        player.Name,
			IsConnected: true,
		})
		logger.Info(ctx).Str("room_code", code).Int64("user_id", player.UserID).Msg("player joined")
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return nil, fmt.Errorf("persist room %s after join: %w", code, err)
	}
	if err := uc.users.UpdateCurrentRoom(ctx, player.UserID, &code); err != nil {
		logger.Error(ctx).Err(err).Int64("user_id", player.UserID).Msg("failed to update current room")
	}

	uc.broadcaster.RoomState(ctx, room)
	return room, nil
}

// LeaveRoom removes the seat bound to the connection. An empty roster deletes
// the room outright, with no archive; a departing host hands off to the first
// remaining seat in roster order.
func (uc *RoomUseCase) LeaveRoom(ctx context.Context, connID, code string) error {
	if uc.locks.Held(code) {
		// Disband in flight already clears this player out.
		return nil
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	seat := room.SeatByConnID(connID)
	if seat == nil {
		return domain.ErrPlayerNotFound
	}

	room.RemoveSeat(seat.UserID)
	if err := uc.users.UpdateCurrentRoom(ctx, seat.UserID, nil); err != nil {
		logger.Error(ctx).Err(err).Int64("user_id", seat.UserID).Msg("failed to clear current room")
	}

	if len(room.Players) == 0 {
		if err := uc.roomRepo.Delete(ctx, code); err != nil {
			return fmt.Errorf("delete emptied room %s: %w", code, err)
		}
		uc.broadcaster.DetachRoom(ctx, code)
		logger.Info(ctx).Str("room_code", code).Msg("room emptied and deleted")
		return nil
	}

	if seat.UserID == room.HostUserID {
		room.HostUserID = room.Players[0].UserID
		logger.Info(ctx).Str("room_code", code).Int64("new_host", room.HostUserID).Msg("host left, re-elected")
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after leave: %w", code, err)
	}

	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// HandleDisconnect soft-marks the seat as disconnected so the player can
// reconnect later. If every seat is now dark the room is disbanded rather
// than left as a zombie; a disconnected host hands authority to the first
// still-connected seat.
func (uc *RoomUseCase) HandleDisconnect(ctx context.Context, connID, code string) error {
	if uc.locks.Held(code) {
		return nil
	}

	disbandAfter := false

	err := func() error {
		defer uc.lockRoom(code)()

		room, err := uc.loadRoom(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				return nil
			}
			return err
		}

		seat := room.SeatByConnID(connID)
		if seat == nil {
			return nil
		}

		seat.IsConnected = false
		logger.Info(ctx).Str("room_code", code).Int64("user_id", seat.UserID).Msg("player disconnected")

		if room.AllDisconnected() {
			disbandAfter = true
			return nil
		}

		if seat.UserID == room.HostUserID {
			if next := room.FirstConnectedSeat(seat.UserID); next != nil {
				room.HostUserID = next.UserID
				logger.Info(ctx).Str("room_code", code).Int64("new_host", next.UserID).
					Msg("host disconnected, re-elected to connected seat")
			}
		}

		if err := uc.roomRepo.Put(ctx, room); err != nil {
			return fmt.Errorf("persist room %s after disconnect: %w", code, err)
		}
		uc.broadcaster.RoomState(ctx, room)
		return nil
	}()
	if err != nil {
		return err
	}

	if disbandAfter {
		logger.Info(ctx).Str("room_code", code).Msg("all players disconnected, disbanding")
		return uc.Disband(ctx, code)
	}
	return nil
}

// KickPlayer removes a seat at the host's request.
func (uc *RoomUseCase) KickPlayer(ctx context.Context, code string, byUserID, targetUserID int64) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}

	if byUserID != room.HostUserID {
		return domain.ErrNotHost
	}
	if targetUserID == room.HostUserID {
		return domain.ErrCannotKickHost
	}
	if !room.RemoveSeat(targetUserID) {
		return domain.ErrPlayerNotFound
	}

	if err := uc.users.UpdateCurrentRoom(ctx, targetUserID, nil); err != nil {
		logger.Error(ctx).Err(err).Int64("user_id", targetUserID).Msg("failed to clear current room")
	}
	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after kick: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Int64("target", targetUserID).Msg("player kicked")
	uc.broadcaster.Kicked(ctx, targetUserID, "You were removed from the room by the host")
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// StartGame snapshots the seated roster into the scored game, moving the room
// from lobby to active. Calling it on a started game is a no-op.
func (uc *RoomUseCase) StartGame(ctx context.Context, code string) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.IsStarted() {
		return nil
	}

	for _, seat := range room.Players {
		room.Game.Players = append(room.Game.Players, &domain.ScoredPlayer{
			ID:   seat.UserID,
			Name: seat.Name,
		})
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after start: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Int("players", len(room.Game.Players)).Msg("game started")
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// AddGameEvent validates, scores and applies a declared event to the open
// round.
func (uc *RoomUseCase) AddGameEvent(ctx context.Context, code string, input EventInput) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if !room.IsStarted() {
		return domain.ErrGameNotStarted
	}
	if room.Game.IsGameFinished {
		return domain.ErrGameFinished
	}

	ev, err := buildEvent(room.Game, input)
	if err != nil {
		return err
	}

	room.Game.CurrentRoundEvents = append(room.Game.CurrentRoundEvents, ev)
	scoring.Apply(room.Game, ev)

	if imbalance := scoring.RoundImbalance(room.Game); imbalance != 0 {
		// Tolerated (client-declared participants may be unknown), but worth
		// surfacing.
		logger.Warn(ctx).Str("room_code", code).Int("imbalance", imbalance).Str("event_id", ev.ID).
			Msg("round scores no longer sum to zero")
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after event: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Str("event_kind", string(ev.Kind)).
		Int("score", ev.Score).Msg("game event applied")
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// buildEvent is the validation boundary between client-declared intent and
// the ledger. Only arithmetic sanity is checked; legality is a non-goal.
func buildEvent(g *domain.GameState, input EventInput) (*domain.GameEvent, error) {
	switch input.Kind {
	case domain.EventSelfDrawWin:
		if len(input.ActivePlayerIDs) < 2 {
			return nil, fmt.Errorf("self-draw win needs at least 2 active players, got %d", len(input.ActivePlayerIDs))
		}
		return scoring.NewSelfDrawWin(g, input.WinnerID, input.ActivePlayerIDs, input.FanTypes, input.GangCount), nil
	case domain.EventDiscardWin:
		if input.WinnerID == input.DiscarderID {
			return nil, errors.New("discard win needs distinct winner and discarder")
		}
		return scoring.NewDiscardWin(g, input.WinnerID, input.DiscarderID, input.FanTypes, input.GangCount), nil
	case domain.EventDeclaredMeld:
		if domain.MeldBaseStake(input.MeldKind) == 0 {
			return nil, fmt.Errorf("unknown meld kind %q", input.MeldKind)
		}
		if len(input.TargetIDs) == 0 {
			return nil, errors.New("meld declaration needs at least one target")
		}
		return scoring.NewDeclaredMeld(g, input.DeclarerID, input.MeldKind, input.TargetIDs), nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", input.Kind)
	}
}

// RemoveGameEvent retracts one event from the open round, restoring the
// pre-event balances.
func (uc *RoomUseCase) RemoveGameEvent(ctx context.Context, code string, eventID string) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Game.IsGameFinished {
		return domain.ErrGameFinished
	}

	ev, idx := room.Game.EventByID(eventID)
	if ev == nil {
		return domain.ErrEventNotFound
	}

	scoring.Reverse(room.Game, ev)
	room.Game.CurrentRoundEvents = append(room.Game.CurrentRoundEvents[:idx], room.Game.CurrentRoundEvents[idx+1:]...)

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after event removal: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Str("event_id", eventID).Msg("game event retracted")
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// NextRound settles the open round into lifetime totals, or just advances the
// round counter when the open round is empty.
func (uc *RoomUseCase) NextRound(ctx context.Context, code string) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if !room.IsStarted() {
		return domain.ErrGameNotStarted
	}
	if room.Game.IsGameFinished {
		return domain.ErrGameFinished
	}

	scoring.SettleRound(room.Game)

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after round settle: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Int("current_round", room.Game.CurrentRound).Msg("round advanced")
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// SettleGame finishes the game: final round settlement, debt netting and (if
// the game saw any activity) the one archive write. Safe to call twice; the
// second call is a no-op.
func (uc *RoomUseCase) SettleGame(ctx context.Context, code string) error {
	if uc.locks.Held(code) {
		return domain.ErrRoomDisbanding
	}
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		return err
	}

	changed, err := uc.settleLocked(ctx, room)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := uc.roomRepo.Put(ctx, room); err != nil {
		return fmt.Errorf("persist room %s after settle: %w", code, err)
	}
	uc.broadcaster.RoomState(ctx, room)
	return nil
}

// settleLocked runs settlement on a room already under the per-room mutex.
// It returns false when the game was already finished (idempotent path).
// The archive write happens before the room itself is persisted.
func (uc *RoomUseCase) settleLocked(ctx context.Context, room *domain.Room) (bool, error) {
	g := room.Game
	if g.IsGameFinished {
		return false, nil
	}

	hadActivity := g.HasActivity()

	scoring.SettleRound(g)
	g.SettlementResult = scoring.NetDebts(g.Players, g.Settings.PricePerFan)
	g.IsGameFinished = true

	if hadActivity {
		archive := buildArchive(room)
		if err := uc.archiveRepo.Put(ctx, archive); err != nil {
			return false, fmt.Errorf("write archive for room %s: %w", room.Code, err)
		}
		logger.Info(ctx).Str("room_code", room.Code).Str("archive_id", archive.ID).
			Int("rounds", len(archive.History)).Msg("game archived")
	}

	logger.Info(ctx).Str("room_code", room.Code).
		Strs("settlement", g.SettlementResult).Msg("game settled")
	return true, nil
}

func buildArchive(room *domain.Room) *domain.Archive {
	g := room.Game

	players := make([]domain.ArchivePlayer, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, domain.ArchivePlayer{
			UserID:     p.ID,
			Name:       p.Name,
			FinalScore: p.TotalScore,
		})
	}

	history := make([]domain.RoundRecord, len(g.RoundHistory))
	copy(history, g.RoundHistory)

	return &domain.Archive{
		SchemaVersion: domain.SchemaVersion,
		ID:            uuid.NewString(),
		RoomCode:      room.Code,
		RoomName:      room.Name,
		EndedAt:       time.Now(),
		HostUserID:    room.HostUserID,
		Players:       players,
		History:       history,
		Settings:      g.Settings,
	}
}

// Disband tears a room down: it acquires the deletion lock (a second trigger
// racing in becomes a no-op), notifies participants, settles and archives an
// active game, clears every seated user's current-room pointer, detaches
// lingering channel membership and deletes the room. The lock is released on
// every path so a failure cannot wedge the room forever.
func (uc *RoomUseCase) Disband(ctx context.Context, code string) error {
	if !uc.locks.TryAcquire(code) {
		logger.Info(ctx).Str("room_code", code).Msg("disband already in flight")
		return nil
	}
	defer uc.locks.Release(code)
	defer uc.lockRoom(code)()

	room, err := uc.loadRoom(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	uc.broadcaster.RoomEnded(ctx, code, "The room has been disbanded")

	if room.IsStarted() {
		if _, err := uc.settleLocked(ctx, room); err != nil {
			// Lock releases via defer; the room stays and disband can be
			// retried.
			return err
		}
	}

	for _, seat := range room.Players {
		if err := uc.users.UpdateCurrentRoom(ctx, seat.UserID, nil); err != nil {
			logger.Error(ctx).Err(err).Int64("user_id", seat.UserID).Msg("failed to clear current room on disband")
		}
	}

	uc.broadcaster.DetachRoom(ctx, code)

	if err := uc.roomRepo.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}

	logger.Info(ctx).Str("room_code", code).Msg("room disbanded")
	return nil
}

// GetRoom loads a room snapshot (read-only path for authenticate/resume).
func (uc *RoomUseCase) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	return uc.loadRoom(ctx, code)
}

// ListRooms returns all live rooms for the lobby summary.
func (uc *RoomUseCase) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := uc.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListArchives returns the archived games a user took part in.
func (uc *RoomUseCase) ListArchives(ctx context.Context, userID int64) ([]*domain.Archive, error) {
	archives, err := uc.archiveRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list archives for user %d: %w", userID, err)
	}
	return archives, nil
}
