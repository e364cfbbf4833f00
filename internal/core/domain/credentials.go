package domain

import "time"

// Credentials is what an LMS adapter needs to talk to one backend.
// It is resolved fresh for every export and never cached or persisted by the engine.
type Credentials struct {
	Type        LMSType `json:"type"`
	AccessToken string  `json:"-"` // Never serialize
	BaseURL     string  `json:"base_url"`
}

// LMSConnection is a user's stored link to an LMS.
// Secrets are encrypted at rest and decrypted on retrieval.
type LMSConnection struct {
	UserID  string  `json:"user_id"`
	LMSType LMSType `json:"lms_type"`
	BaseURL string  `json:"base_url,omitempty"`

	// Secrets contains decrypted secret values (never persisted as-is)
	Secrets *ConnectionSecrets `json:"-"`

	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ConnectionSecrets contains decrypted secret values.
type ConnectionSecrets struct {
	// OAuth2 tokens from the authorization-code flow
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// Moodle web-service token; the REST RPC layer does not accept OAuth tokens
	WebServiceToken string `json:"web_service_token,omitempty"`
}

// ConnectionSummary is a safe view without secrets
type ConnectionSummary struct {
	LMSType            LMSType    `json:"lms_type"`
	BaseURL            string     `json:"base_url,omitempty"`
	HasAccessToken     bool       `json:"has_access_token"`
	HasWebServiceToken bool       `json:"has_web_service_token"`
	TokenExpiry        *time.Time `json:"token_expiry,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ToSummary converts LMSConnection to ConnectionSummary
func (c *LMSConnection) ToSummary() *ConnectionSummary {
	s := &ConnectionSummary{
		LMSType:     c.LMSType,
		BaseURL:     c.BaseURL,
		TokenExpiry: c.TokenExpiry,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.Secrets != nil {
		s.HasAccessToken = c.Secrets.AccessToken != ""
		s.HasWebServiceToken = c.Secrets.WebServiceToken != ""
	}
	return s
}

// IsExpired checks if the stored OAuth token has expired
func (c *LMSConnection) IsExpired() bool {
	if c.TokenExpiry == nil {
		return false
	}
	return time.Now().After(*c.TokenExpiry)
}
