package domain

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is an account identified by a display name. There is no password:
// logging in with an unknown name registers it, logging in with a known name
// resumes it. CurrentRoomCode points at the room the user is seated in, if
// any, so a returning client can be steered straight back to its game.
type User struct {
	UserID          int64      `json:"user_id" gorm:"primaryKey;column:user_id;autoIncrement"`
	Username        string     `json:"username" gorm:"column:username;unique;not null"`
	CurrentRoomCode *string    `json:"current_room_code,omitempty" gorm:"column:current_room_code;type:varchar(8)"`
	CreatedAt       time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty" gorm:"column:last_seen_at"`
}

func (User) TableName() string {
	return "users"
}

// UserRepository handles user persistence. GetByUsername and GetByID return
// ErrUserNotFound for unknown users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error
	UpdateLastSeen(ctx context.Context, userID int64) error
}
