package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure LocalLock implements DistributedLock
var _ driven.DistributedLock = (*LocalLock)(nil)

// LocalLock is an in-process DistributedLock keyed by name.
// It serializes work within one process only and is used when neither
// Redis nor PostgreSQL is configured.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]time.Time // name -> expiry
	now  func() time.Time
}

// NewLocalLock creates a new in-process lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire takes the named lock unless it is held and not yet expired.
func (l *LocalLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[name]; ok && l.now().Before(expiry) {
		return false, nil
	}
	l.held[name] = l.now().Add(ttl)
	return true, nil
}

// Release drops the named lock. Releasing an unheld lock is a no-op.
// There is no owner check: a holder whose lock lapsed would drop its
// successor's, which is why exports keep their lock alive with Extend.
func (l *LocalLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Extend pushes back the expiry of a held lock.
func (l *LocalLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.held[name]
	if !ok || !l.now().Before(expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	l.held[name] = l.now().Add(ttl)
	return nil
}

// Ping always succeeds.
func (l *LocalLock) Ping(ctx context.Context) error {
	return nil
}
