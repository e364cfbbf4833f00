package domain

import (
	"testing"
	"time"
)

func TestTokenClaimsIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt int64
		expected  bool
	}{
		{"expired token", time.Now().Add(-1 * time.Hour).Unix(), true},
		{"valid token", time.Now().Add(1 * time.Hour).Unix(), false},
		{"no expiry", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &TokenClaims{ExpiresAt: tt.expiresAt}
			if claims.IsExpired() != tt.expected {
				t.Errorf("expected IsExpired() = %v", tt.expected)
			}
		})
	}
}

func TestTokenClaimsToAuthContext(t *testing.T) {
	claims := &TokenClaims{UserID: "user-1", Email: "teacher@example.edu"}

	ctx := claims.ToAuthContext()

	if ctx.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", ctx.UserID)
	}
	if ctx.Email != "teacher@example.edu" {
		t.Errorf("expected email to be copied, got %s", ctx.Email)
	}
}
