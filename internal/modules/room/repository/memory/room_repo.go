// Package memory provides in-memory repository implementations for single
// node deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

// RoomRepo keeps room state in process memory. Rooms are stored and returned
// as deep copies so callers can never mutate repository state behind the
// repository's back.
type RoomRepo struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewRoomRepo() *RoomRepo {
	return &RoomRepo{rooms: make(map[string]*domain.Room)}
}

func (r *RoomRepo) Get(ctx context.Context, code string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, nil
	}
	cp, err := copyRoom(room)
	if err != nil {
		return nil, err
	}
	if err := domain.MigrateRoom(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *RoomRepo) Put(ctx context.Context, room *domain.Room) error {
	cp, err := copyRoom(room)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.Code] = cp
	return nil
}

func (r *RoomRepo) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	return nil
}

func (r *RoomRepo) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		cp, err := copyRoom(room)
		if err != nil {
			return nil, err
		}
		if err := domain.MigrateRoom(cp); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func copyRoom(room *domain.Room) (*domain.Room, error) {
	raw, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("copy room %s: %w", room.Code, err)
	}
	cp := &domain.Room{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, fmt.Errorf("copy room %s: %w", room.Code, err)
	}
	return cp, nil
}
