package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock for export tests.
// It records every acquisition so tests can check which (course, LMS)
// pairs were locked, and AcquireFn replaces the default behaviour.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]time.Time // name -> expiry
	acquired []string
	extended []string

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	PingErr   error
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.held[name]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	m.held[name] = time.Now().Add(ttl)
	m.acquired = append(m.acquired, name)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.held[name]; !ok || time.Now().After(expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	m.held[name] = time.Now().Add(ttl)
	m.extended = append(m.extended, name)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// IsHeld reports whether name is locked and not expired
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.held[name]
	return ok && time.Now().Before(expiry)
}

// SetLockHeld simulates another process holding name
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = time.Now().Add(ttl)
}

// Acquired returns the names successfully acquired, in order
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

// Extended returns the names of every successful Extend, in order
func (m *MockDistributedLock) Extended() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extended...)
}
