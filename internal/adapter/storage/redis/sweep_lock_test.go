package redis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepLock_Exclusive(t *testing.T) {
	mr, client := newTestClient(t)
	first := NewSweepLock(client, zerolog.Nop())
	second := NewSweepLock(client, zerolog.Nop())
	ctx := context.Background()

	unlock, ok, err := first.TryLock(ctx, "sweeper:hourly", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, unlock)
	assert.Equal(t, time.Minute, mr.TTL("lock:sweeper:hourly"))

	_, ok, err = second.TryLock(ctx, "sweeper:hourly", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.False(t, mr.Exists("lock:sweeper:hourly"))

	unlock2, ok, err := second.TryLock(ctx, "sweeper:hourly", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}

func TestSweepLock_LeaseExpires(t *testing.T) {
	mr, client := newTestClient(t)
	lock := NewSweepLock(client, zerolog.Nop())
	ctx := context.Background()

	staleUnlock, ok, err := lock.TryLock(ctx, "sweeper:daily", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = lock.TryLock(ctx, "sweeper:daily", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new holder's lease.
	staleUnlock()
	assert.True(t, mr.Exists("lock:sweeper:daily"))
}

func TestSweepLock_ServerError(t *testing.T) {
	mr, client := newTestClient(t)
	lock := NewSweepLock(client, zerolog.Nop())
	mr.SetError("LOADING")

	_, ok, err := lock.TryLock(context.Background(), "sweeper:hourly", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
