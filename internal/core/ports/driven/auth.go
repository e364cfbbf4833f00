package driven

import "github.com/custodia-labs/coursebridge/internal/core/domain"

// AuthAdapter handles bearer token cryptography.
// Tokens are minted by the authoring platform; GenerateToken exists for tooling and tests.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
