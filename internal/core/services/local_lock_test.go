package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()

	ok, err := l.Acquire(ctx, "export:c1:moodle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "export:c1:moodle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire should fail while held")

	ok, err = l.Acquire(ctx, "export:c1:canvas", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different name is independent")

	require.NoError(t, l.Release(ctx, "export:c1:moodle"))
	ok, err = l.Acquire(ctx, "export:c1:moodle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, l.Release(ctx, "never-held"))
	assert.NoError(t, l.Ping(ctx))
}

func TestLocalLock_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.now = func() time.Time { return now }

	ok, _ := l.Acquire(ctx, "a", time.Minute)
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	require.NoError(t, l.Extend(ctx, "a", time.Minute))

	now = now.Add(45 * time.Second)
	ok, _ = l.Acquire(ctx, "a", time.Minute)
	assert.False(t, ok, "extended lock still held")

	now = now.Add(time.Minute)
	ok, _ = l.Acquire(ctx, "a", time.Minute)
	assert.True(t, ok, "expired lock can be taken")

	assert.Error(t, l.Extend(ctx, "missing", time.Minute))
}
