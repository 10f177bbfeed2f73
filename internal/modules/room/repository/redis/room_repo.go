// Package redis implements the room repository on Redis for multi-process
// deployments. Rooms are transient, so every write refreshes a TTL instead of
// relying on explicit cleanup after a crash.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

const roomKeyPrefix = "room:"

// RoomRepo implements domain.RoomRepository using Redis.
type RoomRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRoomRepo creates a Redis room repository. An abandoned room expires on
// its own after the TTL.
func NewRoomRepo(rdb *redis.Client, ttl time.Duration) *RoomRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RoomRepo{rdb: rdb, ttl: ttl}
}

func roomKey(code string) string {
	return roomKeyPrefix + code
}

func (r *RoomRepo) Get(ctx context.Context, code string) (*domain.Room, error) {
	data, err := r.rdb.Get(ctx, roomKey(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	room := &domain.Room{}
	if err := json.Unmarshal(data, room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	if err := domain.MigrateRoom(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) Put(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	if err := r.rdb.Set(ctx, roomKey(room.Code), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("put room %s: %w", room.Code, err)
	}
	return nil
}

func (r *RoomRepo) Delete(ctx context.Context, code string) error {
	if err := r.rdb.Del(ctx, roomKey(code)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

func (r *RoomRepo) List(ctx context.Context) ([]*domain.Room, error) {
	var rooms []*domain.Room
	iter := r.rdb.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		room := &domain.Room{}
		if err := json.Unmarshal(data, room); err != nil {
			return nil, fmt.Errorf("list rooms: decode %s: %w", iter.Val(), err)
		}
		if err := domain.MigrateRoom(room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
