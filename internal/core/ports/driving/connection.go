package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// SaveConnectionRequest stores LMS credentials for the caller.
// @Description LMS connection credentials
type SaveConnectionRequest struct {
	UserID          string         `json:"-"`
	LMS             domain.LMSType `json:"-"`
	BaseURL         string         `json:"base_url"`
	AccessToken     string         `json:"access_token,omitempty"`
	RefreshToken    string         `json:"refresh_token,omitempty"`
	WebServiceToken string         `json:"web_service_token,omitempty"`
	TokenExpiry     *time.Time     `json:"token_expiry,omitempty"`
}

// ConnectionService manages a user's stored LMS credentials
type ConnectionService interface {
	// Save validates and stores credentials, replacing any existing connection.
	Save(ctx context.Context, req SaveConnectionRequest) (*domain.ConnectionSummary, error)

	// Get returns a secret-free view of the connection.
	// Returns domain.ErrNotFound if the user never connected this LMS.
	Get(ctx context.Context, userID string, lms domain.LMSType) (*domain.ConnectionSummary, error)

	// Delete removes the stored connection.
	Delete(ctx context.Context, userID string, lms domain.LMSType) error
}
