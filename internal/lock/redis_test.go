package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, ttl), mr
}

func TestRedisLocker_ExclusiveUntilUnlock(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:{user-1}"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second holder must wait")

	unlock()
	assert.False(t, mr.Exists("lock:{user-1}"))

	unlock2, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ExpiredLeaseIsReported(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	var lost []string
	l.OnLost(func(key string) { lost = append(lost, key) })

	unlock, err := l.Lock(context.Background(), "user-2")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	// someone else takes the expired lock
	unlockOther, err := l.Lock(context.Background(), "user-2")
	require.NoError(t, err)

	unlock()
	assert.Equal(t, []string{"user-2"}, lost)
	assert.True(t, mr.Exists("lock:{user-2}"), "stale release must not delete the new holder's lease")
	unlockOther()
}
