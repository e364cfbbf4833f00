package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

const (
	secretVersion = 0x01
	nonceSize     = 12
	keySize       = 32 // AES-256

	keySalt = "coursebridge"
	keyInfo = "lms-connection-secrets"
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("failed to decrypt secret blob")

	// ErrEmptyKeyMaterial is returned when no key or passphrase is configured.
	ErrEmptyKeyMaterial = errors.New("encryption key material is empty")
)

// DeriveKey turns configured key material into a 32-byte AES-256 key.
// A 64-character hex string is used as the raw key; anything else is treated
// as a passphrase and expanded with HKDF-SHA256.
func DeriveKey(material string) ([]byte, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, ErrEmptyKeyMaterial
	}

	if len(material) == 2*keySize {
		if raw, err := hex.DecodeString(material); err == nil {
			return raw, nil
		}
	}

	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(material), []byte(keySalt), []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// SecretEncryptor seals the LMS tokens of one connection row.
//
// Blob layout: version(1) || nonce(12) || AES-256-GCM(JSON secrets).
// The row's user id and LMS type are authenticated as associated data, so a
// blob copied onto another user's row, or from the Canvas row to the Moodle
// row, fails to open.
type SecretEncryptor struct {
	gcm cipher.AEAD
}

// NewSecretEncryptor creates an encryptor from a 32-byte key (see DeriveKey).
func NewSecretEncryptor(key []byte) (*SecretEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &SecretEncryptor{gcm: gcm}, nil
}

// Seal encrypts the secrets of the (userID, lms) connection.
func (e *SecretEncryptor) Seal(userID string, lms domain.LMSType, secrets *domain.ConnectionSecrets) ([]byte, error) {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return nil, fmt.Errorf("marshal secrets: %w", err)
	}

	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+e.gcm.Overhead())
	blob[0] = secretVersion
	if _, err := rand.Read(blob[1:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.gcm.Seal(blob, blob[1:], plaintext, connectionAAD(userID, lms)), nil
}

// Open decrypts a blob sealed for the same (userID, lms) connection.
func (e *SecretEncryptor) Open(userID string, lms domain.LMSType, blob []byte) (*domain.ConnectionSecrets, error) {
	if len(blob) < 1+nonceSize+e.gcm.Overhead() {
		return nil, ErrInvalidBlobSize
	}
	if blob[0] != secretVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := e.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], connectionAAD(userID, lms))
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var secrets domain.ConnectionSecrets
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("unmarshal secrets: %w", err)
	}
	return &secrets, nil
}

func connectionAAD(userID string, lms domain.LMSType) []byte {
	return []byte("lms_connections/" + userID + "/" + string(lms))
}
