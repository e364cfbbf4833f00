package driven

import (
	"context"
	"time"
)

// DistributedLock serializes exports of one course to one LMS across
// processes. Lock names look like "export:<course-id>:<lms>".
type DistributedLock interface {
	// Acquire takes the lock without waiting. false means someone else
	// holds it. The lock lapses after ttl if never released.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops a lock this process holds. Unheld or lapsed locks are a no-op.
	Release(ctx context.Context, name string) error

	// Extend pushes back the expiry of a lock this process holds.
	// Backends without expiry (PostgreSQL advisory locks) only check ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
