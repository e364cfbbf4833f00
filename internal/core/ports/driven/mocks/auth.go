package mocks

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

// MockAuthAdapter hands out opaque tokens and remembers the claims behind
// them. Unknown tokens are invalid; expiry is left to the caller.
type MockAuthAdapter struct {
	mu     sync.Mutex
	claims map[string]domain.TokenClaims
	seq    int
}

func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{claims: make(map[string]domain.TokenClaims)}
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	if claims == nil {
		return "", domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token := fmt.Sprintf("test-token-%d", m.seq)
	m.claims[token] = *claims
	return token, nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claims, ok := m.claims[token]
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return &claims, nil
}
