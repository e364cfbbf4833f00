package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure MockConnectionStore implements ConnectionStore
var _ driven.ConnectionStore = (*MockConnectionStore)(nil)

// MockConnectionStore is an in-memory ConnectionStore for testing
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]*domain.LMSConnection // key: userID:lms

	// GetErr, if set, is returned by every Get call
	GetErr error
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		connections: make(map[string]*domain.LMSConnection),
	}
}

func connectionKey(userID string, lms domain.LMSType) string {
	return userID + ":" + string(lms)
}

func (m *MockConnectionStore) Get(ctx context.Context, userID string, lms domain.LMSType) (*domain.LMSConnection, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[connectionKey(userID, lms)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return conn, nil
}

func (m *MockConnectionStore) Save(ctx context.Context, conn *domain.LMSConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[connectionKey(conn.UserID, conn.LMSType)] = conn
	return nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, userID string, lms domain.LMSType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := connectionKey(userID, lms)
	if _, ok := m.connections[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.connections, key)
	return nil
}
