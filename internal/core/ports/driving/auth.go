package driving

import (
	"context"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// AuthService validates bearer tokens for the HTTP surface
type AuthService interface {
	// ValidateToken validates a token and returns the caller's auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
