// Package memory provides an in-memory user store for single node
// deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/user/domain"
)

// UserRepo keeps users in process memory.
type UserRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.User
	byName map[string]int64
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		nextID: 1,
		byID:   make(map[int64]*domain.User),
		byName: make(map[string]int64),
	}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.UserID = r.nextID
	r.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	r.byID[cp.UserID] = &cp
	r.byName[cp.Username] = cp.UserID
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *UserRepo) UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if roomCode == nil {
		user.CurrentRoomCode = nil
	} else {
		code := *roomCode
		user.CurrentRoomCode = &code
	}
	return nil
}

func (r *UserRepo) UpdateLastSeen(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	now := time.Now()
	user.LastSeenAt = &now
	return nil
}
