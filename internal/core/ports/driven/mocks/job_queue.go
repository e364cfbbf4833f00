package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

var _ driven.JobQueue = (*MockJobQueue)(nil)

// MockJobQueue is an in-memory JobQueue for testing.
// Dequeue ignores ScheduledFor so retried jobs can be picked up at once.
type MockJobQueue struct {
	mu      sync.Mutex
	jobs    map[string]*domain.ExportJob
	pending []string

	// EnqueueErr, if set, is returned by every Enqueue call
	EnqueueErr error
	// PingErr, if set, is returned by Ping
	PingErr error
}

// NewMockJobQueue creates a new MockJobQueue
func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{
		jobs: make(map[string]*domain.ExportJob),
	}
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *domain.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	cp := *job
	m.jobs[job.ID] = &cp
	m.pending = append(m.pending, job.ID)
	return nil
}

func (m *MockJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil, nil
	}
	id := m.pending[0]
	m.pending = m.pending[1:]

	job := m.jobs[id]
	job.MarkRunning()
	cp := *job
	return &cp, nil
}

func (m *MockJobQueue) Complete(ctx context.Context, jobID string, report *domain.ExportReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.MarkCompleted(report)
	return nil
}

func (m *MockJobQueue) Fail(ctx context.Context, jobID string, reason string, retry bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if retry && job.CanRetry() {
		job.Retry(reason)
		m.pending = append(m.pending, jobID)
		return nil
	}
	job.MarkFailed(reason)
	return nil
}

func (m *MockJobQueue) Get(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobQueue) Ping(ctx context.Context) error {
	return m.PingErr
}

// Pending returns the number of jobs waiting to be dequeued
func (m *MockJobQueue) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
