package locks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSingleFlight(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	ok, err := locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second lock on the same source must fail")

	ok, err = locker.TryLock(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per source")

	require.NoError(t, locker.Unlock(ctx, 1))
	ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
