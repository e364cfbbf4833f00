package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// CredentialResolver turns a user's stored LMS connection into adapter credentials.
// It is read-only and does no caching: every call reads the store afresh.
type CredentialResolver struct {
	store               driven.ConnectionStore
	moodleTokenOverride string
	defaultBaseURLs     map[domain.LMSType]string
	logger              *slog.Logger
}

// CredentialResolverConfig holds dependencies for CredentialResolver.
type CredentialResolverConfig struct {
	Store driven.ConnectionStore

	// MoodleTokenOverride, when set, is used as the Moodle web-service token
	// for every user in place of the stored one.
	MoodleTokenOverride string

	// DefaultBaseURLs is used when a connection has no base URL of its own.
	DefaultBaseURLs map[domain.LMSType]string

	Logger *slog.Logger
}

// NewCredentialResolver creates a new credential resolver.
func NewCredentialResolver(cfg CredentialResolverConfig) *CredentialResolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := make(map[domain.LMSType]string, len(cfg.DefaultBaseURLs))
	for k, v := range cfg.DefaultBaseURLs {
		defaults[k] = strings.TrimSpace(v)
	}
	return &CredentialResolver{
		store:               cfg.Store,
		moodleTokenOverride: strings.TrimSpace(cfg.MoodleTokenOverride),
		defaultBaseURLs:     defaults,
		logger:              logger,
	}
}

// Resolve returns credentials for the user's LMS connection.
// A nil result with a nil error means the user is not connected, which callers
// report and skip rather than treat as a failure.
func (r *CredentialResolver) Resolve(ctx context.Context, userID string, lms domain.LMSType) (*domain.Credentials, error) {
	if !lms.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, lms)
	}

	conn, err := r.lookup(ctx, userID, lms)
	if err != nil {
		return nil, err
	}

	var token string
	switch lms {
	case domain.LMSTypeCanvas:
		token = r.canvasToken(userID, conn)
	case domain.LMSTypeMoodle:
		token = r.moodleToken(userID, conn)
	}
	if token == "" {
		return nil, nil
	}

	baseURL := r.defaultBaseURLs[lms]
	if conn != nil && strings.TrimSpace(conn.BaseURL) != "" {
		baseURL = strings.TrimSpace(conn.BaseURL)
	}
	if baseURL == "" {
		r.logger.Warn("lms connection has no base url", "user_id", userID, "lms", lms)
		return nil, nil
	}

	return &domain.Credentials{
		Type:        lms,
		AccessToken: token,
		BaseURL:     baseURL,
	}, nil
}

func (r *CredentialResolver) lookup(ctx context.Context, userID string, lms domain.LMSType) (*domain.LMSConnection, error) {
	if r.store == nil {
		return nil, nil
	}
	conn, err := r.store.Get(ctx, userID, lms)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s connection: %w", lms, err)
	}
	return conn, nil
}

func (r *CredentialResolver) canvasToken(userID string, conn *domain.LMSConnection) string {
	if conn == nil || conn.Secrets == nil || conn.Secrets.AccessToken == "" {
		return ""
	}
	if conn.IsExpired() {
		r.logger.Warn("canvas access token expired", "user_id", userID, "expired_at", conn.TokenExpiry)
		return ""
	}
	return conn.Secrets.AccessToken
}

// moodleToken picks the web-service token: the override, then the stored one.
// An OAuth access token is never substituted; the REST endpoint rejects it.
func (r *CredentialResolver) moodleToken(userID string, conn *domain.LMSConnection) string {
	if r.moodleTokenOverride != "" {
		return r.moodleTokenOverride
	}
	if conn == nil || conn.Secrets == nil {
		return ""
	}
	if conn.Secrets.WebServiceToken != "" {
		return conn.Secrets.WebServiceToken
	}
	if conn.Secrets.AccessToken != "" {
		r.logger.Warn("moodle connection has only an oauth token, web-service token required",
			"user_id", userID,
		)
	}
	return ""
}
