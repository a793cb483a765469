package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client), mr
}

func TestLockAndUnlock(t *testing.T) {
	t.Parallel()

	l, _ := newLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "+5511999990000", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	unlock, err = l.Lock(ctx, "+5511999990000", time.Minute)
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	unlock(ctx)
}

func TestLockHeldBlocksUntilContextEnds(t *testing.T) {
	t.Parallel()

	l, _ := newLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "+5511988880000", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(waitCtx, "+5511988880000", time.Minute); err == nil {
		t.Fatalf("second lock on a held key must not succeed")
	}
}

func TestUnlockIgnoresStolenKey(t *testing.T) {
	t.Parallel()

	l, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "+5511977770000", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Simulate expiry plus reacquisition by another run.
	mr.FastForward(2 * time.Minute)
	other, err := l.Lock(ctx, "+5511977770000", time.Minute)
	if err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}

	if err := unlock(ctx); err != nil {
		t.Fatalf("stale unlock: %v", err)
	}

	// The new holder's lock must survive the stale release.
	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(waitCtx, "+5511977770000", time.Minute); err == nil {
		t.Fatalf("lock must still be held by the new owner")
	}
	other(ctx)
}
