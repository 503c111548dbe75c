package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST HELPERS

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLockAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "import:acme", time.Minute)
	l2 := NewRedisLock(client, "import:acme", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, l1.Release(ctx))

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "released lock is free again")
}

func TestRedisLockDifferentKeysIndependent(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "import:acme", time.Minute)
	l2 := NewRedisLock(client, "import:globex", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "import:acme", time.Minute)
	l2 := NewRedisLock(client, "import:acme", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A non-owner release is a no-op, the owner stays locked in.
	require.NoError(t, l2.Release(ctx))

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLockExtend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	l := NewRedisLock(client, "import:acme", time.Minute)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Hour))

	ttl := mr.TTL("realmsync:lock:import:acme")
	assert.Greater(t, ttl, time.Minute)
}

func TestNewPicksRedisWhenAvailable(t *testing.T) {
	client := newTestRedis(t)

	l := New(client, nil, "import:acme", time.Minute)
	_, ok := l.(*RedisLock)
	assert.True(t, ok)

	l = New(nil, nil, "import:acme", time.Minute)
	_, ok = l.(*AdvisoryLock)
	assert.True(t, ok)
}
