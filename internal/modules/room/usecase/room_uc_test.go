package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/repository/memory"
)

// fakeDirectory records current-room pointer updates.
type fakeDirectory struct {
	mu      sync.Mutex
	current map[int64]*string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{current: make(map[int64]*string)}
}

func (d *fakeDirectory) UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current[userID] = roomCode
	return nil
}

func (d *fakeDirectory) roomOf(userID int64) *string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current[userID]
}

// fakeBroadcaster records every push.
type fakeBroadcaster struct {
	mu       sync.Mutex
	states   []*domain.Room
	ended    []string
	kicked   []int64
	detached []string
}

func (b *fakeBroadcaster) RoomState(ctx context.Context, room *domain.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, room)
}

func (b *fakeBroadcaster) RoomEnded(ctx context.Context, roomCode, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, roomCode)
}

func (b *fakeBroadcaster) Kicked(ctx context.Context, userID int64, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kicked = append(b.kicked, userID)
}

func (b *fakeBroadcaster) DetachRoom(ctx context.Context, roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detached = append(b.detached, roomCode)
}

func (b *fakeBroadcaster) endedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ended)
}

type fixture struct {
	uc       *RoomUseCase
	rooms    *memory.RoomRepo
	archives *memory.ArchiveRepo
	dir      *fakeDirectory
	bc       *fakeBroadcaster
}

func newFixture() *fixture {
	rooms := memory.NewRoomRepo()
	archives := memory.NewArchiveRepo()
	dir := newFakeDirectory()
	bc := &fakeBroadcaster{}
	return &fixture{
		uc:       NewRoomUseCase(rooms, archives, dir, bc),
		rooms:    rooms,
		archives: archives,
		dir:      dir,
		bc:       bc,
	}
}

func player(id int64) PlayerRef {
	return PlayerRef{
		UserID: id,
		Name:   fmt.Sprintf("player%d", id),
		ConnID: fmt.Sprintf("conn-%d", id),
	}
}

func mustCreate(t *testing.T, f *fixture, host PlayerRef) *domain.Room {
	t.Helper()
	room, err := f.uc.CreateRoom(context.Background(), host, "", domain.Settings{MaxFan: 4, PricePerFan: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func selfDraw(winnerID int64, active []int64, fan int) EventInput {
	return EventInput{
		Kind:            domain.EventSelfDrawWin,
		WinnerID:        winnerID,
		ActivePlayerIDs: active,
		FanTypes:        []domain.FanType{{Name: "test", Value: fan}},
	}
}

func TestCreateRoomSeatsHost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))

	if len(room.Code) != 4 {
		t.Errorf("code = %q, want 4 digits", room.Code)
	}
	if room.HostUserID != 1 {
		t.Errorf("host = %d, want 1", room.HostUserID)
	}
	if len(room.Players) != 1 || !room.Players[0].IsConnected {
		t.Fatalf("expected one connected seat, got %+v", room.Players)
	}
	if room.Name != "player1's table" {
		t.Errorf("name = %q", room.Name)
	}
	if got := f.dir.roomOf(1); got == nil || *got != room.Code {
		t.Errorf("host current room pointer = %v, want %s", got, room.Code)
	}

	stored, err := f.rooms.Get(ctx, room.Code)
	if err != nil || stored == nil {
		t.Fatalf("room not persisted: %v", err)
	}
}

func TestJoinRoomFullAndReconnect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	for id := int64(2); id <= 4; id++ {
		if _, err := f.uc.JoinRoom(ctx, room.Code, player(id)); err != nil {
			t.Fatalf("JoinRoom(%d): %v", id, err)
		}
	}

	if _, err := f.uc.JoinRoom(ctx, room.Code, player(5)); !errors.Is(err, domain.ErrRoomFull) {
		t.Errorf("fifth join err = %v, want ErrRoomFull", err)
	}

	// A returning player replaces their seat's connection, never a new seat.
	back := player(3)
	back.ConnID = "conn-3-new"
	got, err := f.uc.JoinRoom(ctx, room.Code, back)
	if err != nil {
		t.Fatalf("reconnect join: %v", err)
	}
	if len(got.Players) != 4 {
		t.Fatalf("roster grew to %d on reconnect", len(got.Players))
	}
	seat := got.SeatByUserID(3)
	if seat == nil || seat.ConnID != "conn-3-new" || !seat.IsConnected {
		t.Errorf("seat not rebound: %+v", seat)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture()
	if _, err := f.uc.JoinRoom(context.Background(), "0000", player(1)); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestLeaveLastPlayerDeletesRoomWithoutArchive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if err := f.uc.LeaveRoom(ctx, "conn-1", room.Code); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}

	stored, err := f.rooms.Get(ctx, room.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != nil {
		t.Error("room should be deleted once empty")
	}
	if n := f.archives.Count(); n != 0 {
		t.Errorf("archives = %d, want 0 for an abandoned lobby", n)
	}
	if got := f.dir.roomOf(1); got != nil {
		t.Errorf("current room pointer should be cleared, got %v", *got)
	}
}

func TestLeaveHostHandsOffInRosterOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	for id := int64(2); id <= 3; id++ {
		if _, err := f.uc.JoinRoom(ctx, room.Code, player(id)); err != nil {
			t.Fatalf("JoinRoom(%d): %v", id, err)
		}
	}

	if err := f.uc.LeaveRoom(ctx, "conn-1", room.Code); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}

	stored, _ := f.rooms.Get(ctx, room.Code)
	if stored.HostUserID != 2 {
		t.Errorf("new host = %d, want 2 (first remaining seat)", stored.HostUserID)
	}
}

func TestHostDisconnectReelectsConnectedSeat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	for id := int64(2); id <= 3; id++ {
		if _, err := f.uc.JoinRoom(ctx, room.Code, player(id)); err != nil {
			t.Fatalf("JoinRoom(%d): %v", id, err)
		}
	}
	// Seat 2 goes dark first, then the host. Authority must skip the dark
	// seat and land on seat 3.
	if err := f.uc.HandleDisconnect(ctx, "conn-2", room.Code); err != nil {
		t.Fatalf("HandleDisconnect(2): %v", err)
	}
	if err := f.uc.HandleDisconnect(ctx, "conn-1", room.Code); err != nil {
		t.Fatalf("HandleDisconnect(1): %v", err)
	}

	stored, _ := f.rooms.Get(ctx, room.Code)
	if stored == nil {
		t.Fatal("room vanished; disconnect must not delete while seats remain connected")
	}
	if stored.HostUserID != 3 {
		t.Errorf("new host = %d, want 3 (first connected seat)", stored.HostUserID)
	}
	if len(stored.Players) != 3 {
		t.Errorf("roster size = %d, want 3 (disconnect keeps the seat)", len(stored.Players))
	}
	if seat := stored.SeatByUserID(1); seat.IsConnected {
		t.Error("host seat should be marked disconnected")
	}
}

func TestAllDisconnectedDisbandsAndArchivesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1, 2}, 2)); err != nil {
		t.Fatalf("AddGameEvent: %v", err)
	}

	if err := f.uc.HandleDisconnect(ctx, "conn-1", room.Code); err != nil {
		t.Fatalf("HandleDisconnect(1): %v", err)
	}
	if err := f.uc.HandleDisconnect(ctx, "conn-2", room.Code); err != nil {
		t.Fatalf("HandleDisconnect(2): %v", err)
	}

	stored, _ := f.rooms.Get(ctx, room.Code)
	if stored != nil {
		t.Error("room should be gone after every seat went dark")
	}
	if n := f.archives.Count(); n != 1 {
		t.Errorf("archives = %d, want exactly 1", n)
	}
	if got := f.dir.roomOf(2); got != nil {
		t.Errorf("seat 2 current room pointer should be cleared, got %v", *got)
	}
}

func TestSettleGameIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1, 2}, 3)); err != nil {
		t.Fatalf("AddGameEvent: %v", err)
	}

	if err := f.uc.SettleGame(ctx, room.Code); err != nil {
		t.Fatalf("first SettleGame: %v", err)
	}
	first, _ := f.rooms.Get(ctx, room.Code)
	if !first.Game.IsGameFinished {
		t.Fatal("game should be finished after settle")
	}
	if len(first.Game.SettlementResult) == 0 {
		t.Fatal("expected settlement instructions")
	}

	if err := f.uc.SettleGame(ctx, room.Code); err != nil {
		t.Fatalf("second SettleGame: %v", err)
	}
	second, _ := f.rooms.Get(ctx, room.Code)

	if n := f.archives.Count(); n != 1 {
		t.Errorf("archives = %d, want exactly 1 across both settles", n)
	}
	if len(second.Game.SettlementResult) != len(first.Game.SettlementResult) {
		t.Error("settlement result changed on the idempotent second settle")
	}
	for i := range first.Game.SettlementResult {
		if second.Game.SettlementResult[i] != first.Game.SettlementResult[i] {
			t.Errorf("settlement[%d] changed: %q -> %q", i, first.Game.SettlementResult[i], second.Game.SettlementResult[i])
		}
	}
}

func TestSettleWithoutActivitySkipsArchive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.SettleGame(ctx, room.Code); err != nil {
		t.Fatalf("SettleGame: %v", err)
	}
	if n := f.archives.Count(); n != 0 {
		t.Errorf("archives = %d, want 0 for a game with no events", n)
	}
}

func TestConcurrentDisbandSingleArchive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(2, []int64{1, 2}, 1)); err != nil {
		t.Fatalf("AddGameEvent: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.uc.Disband(ctx, room.Code)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Disband[%d]: %v", i, err)
		}
	}
	if n := f.archives.Count(); n != 1 {
		t.Errorf("archives = %d, want exactly 1", n)
	}
	stored, _ := f.rooms.Get(ctx, room.Code)
	if stored != nil {
		t.Error("room should be deleted")
	}
	if n := f.bc.endedCount(); n != 1 {
		t.Errorf("room ended pushes = %d, want 1", n)
	}
}

func TestJoinWhileDisbandingRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))

	if !f.uc.locks.TryAcquire(room.Code) {
		t.Fatal("TryAcquire on a fresh room should succeed")
	}
	defer f.uc.locks.Release(room.Code)

	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); !errors.Is(err, domain.ErrRoomDisbanding) {
		t.Errorf("join err = %v, want ErrRoomDisbanding", err)
	}
	if err := f.uc.LeaveRoom(ctx, "conn-1", room.Code); err != nil {
		t.Errorf("leave during disband should be a silent no-op, got %v", err)
	}
}

func TestKickRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if err := f.uc.KickPlayer(ctx, room.Code, 2, 1); !errors.Is(err, domain.ErrNotHost) {
		t.Errorf("non-host kick err = %v, want ErrNotHost", err)
	}
	if err := f.uc.KickPlayer(ctx, room.Code, 1, 1); !errors.Is(err, domain.ErrCannotKickHost) {
		t.Errorf("self kick err = %v, want ErrCannotKickHost", err)
	}
	if err := f.uc.KickPlayer(ctx, room.Code, 1, 99); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("unknown target err = %v, want ErrPlayerNotFound", err)
	}

	if err := f.uc.KickPlayer(ctx, room.Code, 1, 2); err != nil {
		t.Fatalf("KickPlayer: %v", err)
	}
	stored, _ := f.rooms.Get(ctx, room.Code)
	if stored.SeatByUserID(2) != nil {
		t.Error("kicked player still seated")
	}
	if len(f.bc.kicked) != 1 || f.bc.kicked[0] != 2 {
		t.Errorf("kicked pushes = %v, want [2]", f.bc.kicked)
	}
	if got := f.dir.roomOf(2); got != nil {
		t.Errorf("kicked player's room pointer should be cleared, got %v", *got)
	}
}

func TestEventGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1, 2}, 1)); !errors.Is(err, domain.ErrGameNotStarted) {
		t.Errorf("pre-start event err = %v, want ErrGameNotStarted", err)
	}

	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, EventInput{Kind: "mystery"}); err == nil {
		t.Error("expected error for unknown event kind")
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1}, 1)); err == nil {
		t.Error("expected error for self-draw with a single active player")
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, EventInput{
		Kind: domain.EventDiscardWin, WinnerID: 1, DiscarderID: 1,
	}); err == nil {
		t.Error("expected error for discard win paying oneself")
	}
	if err := f.uc.RemoveGameEvent(ctx, room.Code, "nope"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("remove unknown event err = %v, want ErrEventNotFound", err)
	}

	if err := f.uc.SettleGame(ctx, room.Code); err != nil {
		t.Fatalf("SettleGame: %v", err)
	}
	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1, 2}, 1)); !errors.Is(err, domain.ErrGameFinished) {
		t.Errorf("post-settle event err = %v, want ErrGameFinished", err)
	}
}

func TestAddAndRemoveEventRestoresBalances(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	if err := f.uc.AddGameEvent(ctx, room.Code, selfDraw(1, []int64{1, 2}, 2)); err != nil {
		t.Fatalf("AddGameEvent: %v", err)
	}
	stored, _ := f.rooms.Get(ctx, room.Code)
	if len(stored.Game.CurrentRoundEvents) != 1 {
		t.Fatalf("open round events = %d, want 1", len(stored.Game.CurrentRoundEvents))
	}
	winner := stored.Game.PlayerByID(1)
	if winner.CurrentRoundScore <= 0 {
		t.Fatalf("winner round score = %d, want > 0", winner.CurrentRoundScore)
	}
	evID := stored.Game.CurrentRoundEvents[0].ID

	if err := f.uc.RemoveGameEvent(ctx, room.Code, evID); err != nil {
		t.Fatalf("RemoveGameEvent: %v", err)
	}
	stored, _ = f.rooms.Get(ctx, room.Code)
	if len(stored.Game.CurrentRoundEvents) != 0 {
		t.Errorf("open round events = %d, want 0", len(stored.Game.CurrentRoundEvents))
	}
	for _, p := range stored.Game.Players {
		if p.CurrentRoundScore != 0 {
			t.Errorf("player %d round score = %d after retraction, want 0", p.ID, p.CurrentRoundScore)
		}
	}
}

func TestStartGameIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room := mustCreate(t, f, player(1))
	if _, err := f.uc.JoinRoom(ctx, room.Code, player(2)); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := f.uc.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("second StartGame: %v", err)
	}

	stored, _ := f.rooms.Get(ctx, room.Code)
	if len(stored.Game.Players) != 2 {
		t.Errorf("scored players = %d, want 2 (start must not duplicate the roster)", len(stored.Game.Players))
	}
}
