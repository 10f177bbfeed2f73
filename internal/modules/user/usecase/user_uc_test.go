package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/user/repository/memory"
)

func newTestUC() *UserUseCase {
	return NewUserUseCase(memory.NewUserRepo(), "test-secret", time.Hour)
}

func TestLoginRegistersUnknownName(t *testing.T) {
	uc := newTestUC()
	ctx := context.Background()

	user, token, err := uc.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.UserID == 0 {
		t.Error("expected a non-zero user id")
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want alice", user.Username)
	}
	if token == "" {
		t.Error("expected a token")
	}
}

func TestLoginResumesExistingAccount(t *testing.T) {
	uc := newTestUC()
	ctx := context.Background()

	first, _, err := uc.Login(ctx, "bob")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, _, err := uc.Login(ctx, "bob")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if second.UserID != first.UserID {
		t.Errorf("second login got id %d, want %d", second.UserID, first.UserID)
	}
}

func TestLoginRejectsBadNames(t *testing.T) {
	uc := newTestUC()
	ctx := context.Background()

	if _, _, err := uc.Login(ctx, "   "); err == nil {
		t.Error("expected error for blank username")
	}
	if _, _, err := uc.Login(ctx, strings.Repeat("x", maxUsernameLen+1)); err == nil {
		t.Error("expected error for oversized username")
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	uc := newTestUC()
	ctx := context.Background()

	user, token, err := uc.Login(ctx, "carol")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	userID, username, err := uc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != user.UserID || username != "carol" {
		t.Errorf("claims = (%d, %q), want (%d, carol)", userID, username, user.UserID)
	}
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	uc := newTestUC()
	ctx := context.Background()

	_, token, err := uc.Login(ctx, "dave")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other := NewUserUseCase(memory.NewUserRepo(), "different-secret", time.Hour)
	if _, _, err := other.ValidateToken(ctx, token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
	if _, _, err := uc.ValidateToken(ctx, "not-a-token"); err == nil {
		t.Error("expected error for garbage token")
	}
}
