// Package repository provides the GORM-backed user store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/user/domain"
)

// UserRepository handles user data persistence.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// AutoMigrate creates or updates the users table.
func (r *UserRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.User{})
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error {
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("current_room_code", roomCode).Error
	if err != nil {
		return fmt.Errorf("failed to update current room: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastSeen(ctx context.Context, userID int64) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("last_seen_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}
