package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/domain"
	roomdomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
)

// RunLobbyTicker periodically pushes the live room summary to every lobby
// session. It blocks until ctx is cancelled.
func (uc *GatewayUseCase) RunLobbyTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.pushLobby(ctx)
		}
	}
}

func (uc *GatewayUseCase) pushLobby(ctx context.Context) {
	rooms, err := uc.rooms.ListRooms(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("lobby summary failed")
		return
	}

	summary := make([]domain.LobbyRoom, 0, len(rooms))
	for _, room := range rooms {
		summary = append(summary, domain.LobbyRoom{
			Code:      room.Code,
			Name:      room.Name,
			HostName:  hostName(room),
			Seats:     len(room.Players),
			MaxSeats:  roomdomain.MaxSeats,
			IsStarted: room.IsStarted(),
		})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Code < summary[j].Code })

	uc.sessions.BroadcastLobby(domain.Marshal(domain.CmdLobbyBRC, map[string]interface{}{
		"rooms": summary,
	}))
}

func hostName(room *roomdomain.Room) string {
	if seat := room.SeatByUserID(room.HostUserID); seat != nil {
		return seat.Name
	}
	return ""
}
