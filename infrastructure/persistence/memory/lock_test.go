package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "atlas-graph/pkg/errors"
)

func TestLockContentionFailsFast(t *testing.T) {
	ctx := context.Background()
	lock := NewLock()

	handle, err := lock.Acquire(ctx, "merge:abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "merge:abc", handle.Resource())

	_, err = lock.Acquire(ctx, "merge:abc", time.Minute)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))

	// a different resource is unaffected
	other, err := lock.Acquire(ctx, "merge:def", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, handle.Release(ctx))
	_, err = lock.Acquire(ctx, "merge:abc", time.Minute)
	assert.NoError(t, err)
}

func TestLockReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	lock := NewLock()

	handle, err := lock.Acquire(ctx, "merge:abc", time.Minute)
	require.NoError(t, err)

	require.NoError(t, handle.Release(ctx))
	require.NoError(t, handle.Release(ctx))

	// releasing twice must not free a lock someone else now holds
	second, err := lock.Acquire(ctx, "merge:abc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, handle.Release(ctx))
	_, err = lock.Acquire(ctx, "merge:abc", time.Minute)
	require.Error(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLockExpiryAllowsReacquire(t *testing.T) {
	ctx := context.Background()
	lock := NewLock()

	now := time.Now()
	lock.clock = func() time.Time { return now }

	_, err := lock.Acquire(ctx, "merge:abc", time.Second)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "merge:abc", time.Second)
	require.Error(t, err)

	// past the ttl the stale entry is claimable
	lock.clock = func() time.Time { return now.Add(2 * time.Second) }
	_, err = lock.Acquire(ctx, "merge:abc", time.Second)
	assert.NoError(t, err)
}
