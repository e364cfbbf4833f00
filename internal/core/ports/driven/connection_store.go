package driven

import (
	"context"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// ConnectionStore persists per-user LMS connections with encrypted secrets.
type ConnectionStore interface {
	// Get retrieves a connection with decrypted secrets.
	// Returns domain.ErrNotFound if the user never connected this LMS.
	Get(ctx context.Context, userID string, lms domain.LMSType) (*domain.LMSConnection, error)

	// Save stores a new connection or replaces an existing one.
	// Secrets are encrypted before storage.
	Save(ctx context.Context, conn *domain.LMSConnection) error

	// Delete removes a connection.
	// Returns domain.ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, userID string, lms domain.LMSType) error
}
