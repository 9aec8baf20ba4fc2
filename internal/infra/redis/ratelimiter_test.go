package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		2,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("first call should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("second call should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected by rate limit")
	}

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow call")
	}
}

func TestRedisRateLimiterAllowPerChannel(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow(phone-1) error = %v", err)
	}
	if !allowed {
		t.Fatal("phone-1 should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "phone-2")
	if err != nil {
		t.Fatalf("Allow(phone-2) error = %v", err)
	}
	if !allowed {
		t.Fatal("phone-2 should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow(phone-1) error = %v", err)
	}
	if allowed {
		t.Fatal("phone-1 second request should be rejected")
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, "phone-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestRedisDispatchLockAcquireRelease(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	lockA, err := NewRedisDispatchLock(rdb, "worker-a")
	if err != nil {
		t.Fatalf("NewRedisDispatchLock() error = %v", err)
	}
	lockB, err := NewRedisDispatchLock(rdb, "worker-b")
	if err != nil {
		t.Fatalf("NewRedisDispatchLock() error = %v", err)
	}

	ok, err := lockA.Acquire(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = lockB.Acquire(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("second acquire on a held lock should fail")
	}

	// A non-holder release must not drop the lock.
	if err := lockB.Release(context.Background(), "campaign-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	ok, err = lockB.Acquire(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("lock should still be held by worker-a")
	}

	if err := lockA.Release(context.Background(), "campaign-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, err = lockB.Acquire(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
