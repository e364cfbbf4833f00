package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven/mocks"
)

func saveConn(t *testing.T, store *mocks.MockConnectionStore, conn *domain.LMSConnection) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), conn))
}

func TestCredentialResolver_Canvas(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	saveConn(t, store, &domain.LMSConnection{
		UserID:  "user-1",
		LMSType: domain.LMSTypeCanvas,
		BaseURL: "https://canvas.example.edu/",
		Secrets: &domain.ConnectionSecrets{AccessToken: "canvas-oauth"},
	})
	r := NewCredentialResolver(CredentialResolverConfig{Store: store})

	creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, domain.LMSTypeCanvas, creds.Type)
	assert.Equal(t, "canvas-oauth", creds.AccessToken)
	assert.Equal(t, "https://canvas.example.edu/", creds.BaseURL)
}

func TestCredentialResolver_NotConnected(t *testing.T) {
	r := NewCredentialResolver(CredentialResolverConfig{
		Store:           mocks.NewMockConnectionStore(),
		DefaultBaseURLs: map[domain.LMSType]string{domain.LMSTypeCanvas: "https://canvas.example.edu"},
	})

	for _, lms := range domain.SupportedLMSTypes() {
		creds, err := r.Resolve(context.Background(), "nobody", lms)
		assert.NoError(t, err, lms)
		assert.Nil(t, creds, lms)
	}
}

func TestCredentialResolver_DefaultBaseURL(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	saveConn(t, store, &domain.LMSConnection{
		UserID:  "user-1",
		LMSType: domain.LMSTypeCanvas,
		Secrets: &domain.ConnectionSecrets{AccessToken: "tok"},
	})

	r := NewCredentialResolver(CredentialResolverConfig{
		Store:           store,
		DefaultBaseURLs: map[domain.LMSType]string{domain.LMSTypeCanvas: " https://canvas.example.edu "},
	})
	creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "https://canvas.example.edu", creds.BaseURL)

	noDefault := NewCredentialResolver(CredentialResolverConfig{Store: store})
	creds, err = noDefault.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	assert.Nil(t, creds, "no base url anywhere means not connected")
}

func TestCredentialResolver_CanvasExpiredToken(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	past := time.Now().Add(-time.Hour)
	saveConn(t, store, &domain.LMSConnection{
		UserID:      "user-1",
		LMSType:     domain.LMSTypeCanvas,
		BaseURL:     "https://canvas.example.edu",
		Secrets:     &domain.ConnectionSecrets{AccessToken: "old"},
		TokenExpiry: &past,
	})
	r := NewCredentialResolver(CredentialResolverConfig{Store: store})

	creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCredentialResolver_MoodleTokenPrecedence(t *testing.T) {
	stored := &domain.LMSConnection{
		UserID:  "user-1",
		LMSType: domain.LMSTypeMoodle,
		BaseURL: "https://moodle.example.edu",
		Secrets: &domain.ConnectionSecrets{AccessToken: "oauth", WebServiceToken: "stored-ws"},
	}

	tests := []struct {
		name      string
		conn      *domain.LMSConnection
		override  string
		wantToken string
		wantURL   string
		wantNil   bool
	}{
		{
			name:      "stored web-service token",
			conn:      stored,
			wantToken: "stored-ws",
			wantURL:   "https://moodle.example.edu",
		},
		{
			name:      "override wins over stored token",
			conn:      stored,
			override:  "env-ws",
			wantToken: "env-ws",
			wantURL:   "https://moodle.example.edu",
		},
		{
			name: "oauth token alone is not usable",
			conn: &domain.LMSConnection{
				UserID:  "user-1",
				LMSType: domain.LMSTypeMoodle,
				BaseURL: "https://moodle.example.edu",
				Secrets: &domain.ConnectionSecrets{AccessToken: "oauth"},
			},
			wantNil: true,
		},
		{
			name:      "override without connection uses default url",
			override:  "env-ws",
			wantToken: "env-ws",
			wantURL:   "https://default-moodle.example.edu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockConnectionStore()
			if tt.conn != nil {
				saveConn(t, store, tt.conn)
			}
			r := NewCredentialResolver(CredentialResolverConfig{
				Store:               store,
				MoodleTokenOverride: tt.override,
				DefaultBaseURLs:     map[domain.LMSType]string{domain.LMSTypeMoodle: "https://default-moodle.example.edu"},
			})

			creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeMoodle)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, creds)
				return
			}
			require.NotNil(t, creds)
			assert.Equal(t, tt.wantToken, creds.AccessToken)
			assert.Equal(t, tt.wantURL, creds.BaseURL)
		})
	}
}

func TestCredentialResolver_StoreError(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	store.GetErr = errors.New("decrypt secrets: cipher: message authentication failed")
	r := NewCredentialResolver(CredentialResolverConfig{Store: store})

	creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	assert.Error(t, err)
	assert.Nil(t, creds)
}

func TestCredentialResolver_UnsupportedLMS(t *testing.T) {
	r := NewCredentialResolver(CredentialResolverConfig{})

	_, err := r.Resolve(context.Background(), "user-1", domain.LMSType("blackboard"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedLMS)
}

func TestCredentialResolver_ReadsFreshEachCall(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	conn := &domain.LMSConnection{
		UserID:  "user-1",
		LMSType: domain.LMSTypeCanvas,
		BaseURL: "https://canvas.example.edu",
		Secrets: &domain.ConnectionSecrets{AccessToken: "first"},
	}
	saveConn(t, store, conn)
	r := NewCredentialResolver(CredentialResolverConfig{Store: store})

	creds, err := r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	assert.Equal(t, "first", creds.AccessToken)

	saveConn(t, store, &domain.LMSConnection{
		UserID:  "user-1",
		LMSType: domain.LMSTypeCanvas,
		BaseURL: "https://canvas.example.edu",
		Secrets: &domain.ConnectionSecrets{AccessToken: "second"},
	})
	creds, err = r.Resolve(context.Background(), "user-1", domain.LMSTypeCanvas)
	require.NoError(t, err)
	assert.Equal(t, "second", creds.AccessToken)
}
