package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: time.Millisecond}, mr
}

func TestWithLockRunsCallbackAndReleases(t *testing.T) {
	locker, mr := newLocker(t)
	key := lock.SessionKey("caixa-01")

	ran := false
	err := locker.WithLock(context.Background(), key, time.Second, func(ctx context.Context) error {
		ran = true
		require.True(t, mr.Exists(key))
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, mr.Exists(key))
}

func TestTryLockFailsFastWhenHeld(t *testing.T) {
	locker, _ := newLocker(t)
	key := lock.SessionKey("caixa-01")

	err := locker.WithLock(context.Background(), key, time.Second, func(ctx context.Context) error {
		inner := locker.TryLock(ctx, key, time.Second, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, lock.ErrLockHeld)
		return nil
	})
	require.NoError(t, err)
}

func TestSessionKeyDefaults(t *testing.T) {
	require.Equal(t, "caixa:lock:session:default", lock.SessionKey("  "))
	require.Equal(t, "caixa:lock:session:caixa-02", lock.SessionKey("caixa-02"))
}
