package canvas

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure Builder implements the interface.
var _ driven.AdapterBuilder = (*Builder)(nil)

// Builder creates Canvas adapters.
type Builder struct {
	config *Config
	logger *slog.Logger
}

// NewBuilder creates a new Canvas adapter builder.
func NewBuilder(config *Config, logger *slog.Logger) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{config: config, logger: logger}
}

// Type returns the LMS type.
func (b *Builder) Type() domain.LMSType {
	return domain.LMSTypeCanvas
}

// Build creates an adapter for the instance in creds.
func (b *Builder) Build(creds *domain.Credentials) (driven.LMSAdapter, error) {
	if creds == nil || strings.TrimSpace(creds.AccessToken) == "" {
		return nil, fmt.Errorf("%w: canvas access token is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(creds.BaseURL) == "" {
		return nil, fmt.Errorf("%w: canvas base url is required", domain.ErrInvalidInput)
	}
	return NewAdapter(creds.BaseURL, creds.AccessToken, b.config, b.logger.With("lms", domain.LMSTypeCanvas)), nil
}
