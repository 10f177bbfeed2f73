package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/user/domain"
)

const maxUsernameLen = 32

// UserUseCase handles account identity. Login is name based: an unknown name
// registers a new account, a known name resumes the existing one.
type UserUseCase struct {
	userRepo      domain.UserRepository
	jwtSecret     []byte
	tokenDuration time.Duration
}

func NewUserUseCase(userRepo domain.UserRepository, jwtSecret string, tokenDuration time.Duration) *UserUseCase {
	return &UserUseCase{
		userRepo:      userRepo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
	}
}

// Login resolves a username to an account, creating it on first use, and
// returns the account with a signed token.
func (uc *UserUseCase) Login(ctx context.Context, username string) (*domain.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, "", fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLen {
		return nil, "", fmt.Errorf("username must be at most %d characters", maxUsernameLen)
	}

	user, err := uc.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		user = &domain.User{Username: username}
		if err := uc.userRepo.Create(ctx, user); err != nil {
			return nil, "", fmt.Errorf("failed to create user: %w", err)
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	token, err := uc.generateToken(user.UserID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	_ = uc.userRepo.UpdateLastSeen(ctx, user.UserID)

	return user, token, nil
}

// ValidateToken verifies a JWT and returns the embedded identity.
func (uc *UserUseCase) ValidateToken(ctx context.Context, tokenString string) (int64, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return uc.jwtSecret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return 0, "", fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", fmt.Errorf("invalid token claims")
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", fmt.Errorf("invalid token claims")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return 0, "", fmt.Errorf("invalid token claims")
	}

	return int64(rawID), username, nil
}

// GetByID returns a user by id.
func (uc *UserUseCase) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

// UpdateCurrentRoom records which room the user is seated in; nil clears it.
func (uc *UserUseCase) UpdateCurrentRoom(ctx context.Context, userID int64, roomCode *string) error {
	return uc.userRepo.UpdateCurrentRoom(ctx, userID, roomCode)
}

func (uc *UserUseCase) generateToken(userID int64, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      now.Add(uc.tokenDuration).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}
