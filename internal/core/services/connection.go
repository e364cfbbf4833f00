package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

// connectionService manages stored LMS credentials
type connectionService struct {
	store driven.ConnectionStore
	now   func() time.Time
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(store driven.ConnectionStore) driving.ConnectionService {
	return &connectionService{store: store, now: time.Now}
}

// Save validates and stores credentials, replacing any existing connection
func (s *connectionService) Save(ctx context.Context, req driving.SaveConnectionRequest) (*domain.ConnectionSummary, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.ErrInvalidInput
	}
	if !req.LMS.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, req.LMS)
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(req.BaseURL), "/")
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: base_url must be an absolute http(s) url", domain.ErrInvalidInput)
		}
	}

	secrets := &domain.ConnectionSecrets{
		AccessToken:     strings.TrimSpace(req.AccessToken),
		RefreshToken:    strings.TrimSpace(req.RefreshToken),
		WebServiceToken: strings.TrimSpace(req.WebServiceToken),
	}
	switch req.LMS {
	case domain.LMSTypeCanvas:
		if secrets.AccessToken == "" {
			return nil, fmt.Errorf("%w: canvas requires access_token", domain.ErrInvalidInput)
		}
	case domain.LMSTypeMoodle:
		if secrets.WebServiceToken == "" && secrets.AccessToken == "" {
			return nil, fmt.Errorf("%w: moodle requires web_service_token", domain.ErrInvalidInput)
		}
	}

	now := s.now()
	conn := &domain.LMSConnection{
		UserID:      req.UserID,
		LMSType:     req.LMS,
		BaseURL:     baseURL,
		Secrets:     secrets,
		TokenExpiry: req.TokenExpiry,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Keep the original creation time on replace.
	if existing, err := s.store.Get(ctx, req.UserID, req.LMS); err == nil && existing != nil {
		conn.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	return conn.ToSummary(), nil
}

// Get returns a secret-free view of the connection
func (s *connectionService) Get(ctx context.Context, userID string, lms domain.LMSType) (*domain.ConnectionSummary, error) {
	if !lms.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, lms)
	}
	conn, err := s.store.Get(ctx, userID, lms)
	if err != nil {
		return nil, err
	}
	return conn.ToSummary(), nil
}

// Delete removes the stored connection
func (s *connectionService) Delete(ctx context.Context, userID string, lms domain.LMSType) error {
	if !lms.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, lms)
	}
	return s.store.Delete(ctx, userID, lms)
}
