package services

import (
	"context"
	"errors"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService validates bearer tokens issued by the authoring platform
type authService struct {
	authAdapter driven.AuthAdapter
}

// NewAuthService creates a new AuthService
func NewAuthService(authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{authAdapter: authAdapter}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if errors.Is(err, domain.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if claims.IsExpired() {
		return nil, domain.ErrTokenExpired
	}
	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return claims.ToAuthContext(), nil
}
