package domain

import "time"

// AuthContext contains the authenticated caller for request context
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenClaims represents the JWT token payload.
// Tokens are issued by the authoring platform; this service only validates them.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired checks the claims against the current time
func (c *TokenClaims) IsExpired() bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Now().After(time.Unix(c.ExpiresAt, 0))
}

// ToAuthContext converts validated claims into a request auth context
func (c *TokenClaims) ToAuthContext() *AuthContext {
	return &AuthContext{
		UserID: c.UserID,
		Email:  c.Email,
	}
}
