package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Secrets are stored as a single AES-GCM blob per connection.
type ConnectionStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB, encryptor *SecretEncryptor) *ConnectionStore {
	return &ConnectionStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Save stores a new connection or replaces an existing one.
func (s *ConnectionStore) Save(ctx context.Context, conn *domain.LMSConnection) error {
	var secretBlob []byte
	if conn.Secrets != nil {
		var err error
		secretBlob, err = s.encryptor.Seal(conn.UserID, conn.LMSType, conn.Secrets)
		if err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}

	query := `
		INSERT INTO lms_connections (
			user_id, lms_type, base_url, secret_blob, token_expiry,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, lms_type) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			secret_blob = EXCLUDED.secret_blob,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		conn.UserID,
		string(conn.LMSType),
		conn.BaseURL,
		secretBlob,
		NullTime(conn.TokenExpiry),
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}

// Get retrieves a connection with decrypted secrets.
func (s *ConnectionStore) Get(ctx context.Context, userID string, lms domain.LMSType) (*domain.LMSConnection, error) {
	query := `
		SELECT user_id, lms_type, base_url, secret_blob, token_expiry,
			   created_at, updated_at
		FROM lms_connections
		WHERE user_id = $1 AND lms_type = $2
	`

	var conn domain.LMSConnection
	var lmsType string
	var secretBlob []byte
	var tokenExpiry sql.NullTime

	err := s.db.QueryRowContext(ctx, query, userID, string(lms)).Scan(
		&conn.UserID,
		&lmsType,
		&conn.BaseURL,
		&secretBlob,
		&tokenExpiry,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	conn.LMSType = domain.LMSType(lmsType)
	conn.TokenExpiry = TimePtr(tokenExpiry)

	if len(secretBlob) > 0 {
		secrets, err := s.encryptor.Open(conn.UserID, conn.LMSType, secretBlob)
		if err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
		conn.Secrets = secrets
	}

	return &conn, nil
}

// Delete removes a connection.
func (s *ConnectionStore) Delete(ctx context.Context, userID string, lms domain.LMSType) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM lms_connections WHERE user_id = $1 AND lms_type = $2`,
		userID, string(lms),
	)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
