package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure the mocks implement their interfaces
var (
	_ driven.CourseStore     = (*MockCourseStore)(nil)
	_ driven.ExternalIDStore = (*MockExternalIDStore)(nil)
)

// MockCourseStore is an in-memory CourseStore for testing
type MockCourseStore struct {
	mu      sync.RWMutex
	courses map[string]*domain.LocalCourse
}

// NewMockCourseStore creates a new MockCourseStore
func NewMockCourseStore() *MockCourseStore {
	return &MockCourseStore{
		courses: make(map[string]*domain.LocalCourse),
	}
}

// Put stores a course for later retrieval
func (m *MockCourseStore) Put(course *domain.LocalCourse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[course.ID] = course
}

func (m *MockCourseStore) Get(ctx context.Context, courseID string) (*domain.LocalCourse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	course, ok := m.courses[courseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return course, nil
}

// MockExternalIDStore is an in-memory ExternalIDStore for testing
type MockExternalIDStore struct {
	mu  sync.RWMutex
	ids map[string]domain.ExternalIDs

	// SetErr, if set, is returned by every Set call
	SetErr error
	// SetCalls counts Set invocations
	SetCalls int
}

// NewMockExternalIDStore creates a new MockExternalIDStore
func NewMockExternalIDStore() *MockExternalIDStore {
	return &MockExternalIDStore{
		ids: make(map[string]domain.ExternalIDs),
	}
}

func (m *MockExternalIDStore) Get(ctx context.Context, courseID string) (domain.ExternalIDs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[courseID], nil
}

func (m *MockExternalIDStore) Set(ctx context.Context, courseID string, lms domain.LMSType, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.ids[courseID] = m.ids[courseID].With(lms, remoteID)
	return nil
}
