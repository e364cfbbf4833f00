package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
//
// Advisory locks belong to a session, so each held lock pins one pooled
// connection until it is released. Limitations:
// - TTL is ignored; a lock lives until Release or until the connection drops
// - Extend only checks that the lock is still held by this process
//
// Redis locks are preferred when Redis is configured.
type AdvisoryLock struct {
	db *sql.DB

	// conns maps held names to their pinned connection. A nil entry is a
	// reservation by an Acquire still waiting on the pool.
	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *sql.DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

// hashLockName converts a string lock name to a 64-bit integer for PostgreSQL advisory locks.
// Uses FNV-1a hash for consistent, well-distributed values.
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("coursebridge:lock:" + name))
	return int64(h.Sum64())
}

// Acquire attempts to acquire a named advisory lock without blocking on
// other holders. Advisory locks are re-entrant within a session, so a name
// already held or being acquired by this process is reported as not acquired.
//
// Waiting for a pool connection happens outside l.mu, so a saturated pool
// never stops Release from returning connections.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	if _, held := l.conns[name]; held {
		l.mu.Unlock()
		return false, nil
	}
	l.conns[name] = nil
	l.mu.Unlock()

	conn, err := l.tryLock(ctx, name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if conn == nil {
		delete(l.conns, name)
		return false, err
	}
	l.conns[name] = conn
	return true, nil
}

// tryLock pins a connection and takes the lock on it. A nil connection with a
// nil error means another session holds the lock.
func (l *AdvisoryLock) tryLock(ctx context.Context, name string) (*sql.Conn, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashLockName(name)).Scan(&acquired)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, nil
	}
	return conn, nil
}

// Release unlocks a named advisory lock and returns its connection to the pool.
// Releasing a lock this process does not hold is a no-op.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn := l.conns[name]
	if conn != nil {
		delete(l.conns, name)
	}
	l.mu.Unlock()

	if conn == nil {
		return nil
	}

	var released bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", hashLockName(name)).Scan(&released); err != nil {
		// The session still holds the lock; discard the connection so it is not reused.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		conn.Close()
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return conn.Close()
}

// Extend verifies the lock is still held. Advisory locks have no TTL to extend.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conns[name] == nil {
		return fmt.Errorf("lock %s not held", name)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
