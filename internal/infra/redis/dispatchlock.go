package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/wapanel/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

// Lock TTL bounds how long a crashed worker can hold a campaign hostage.
// A live dispatch run refreshes nothing; campaigns longer than the TTL are
// protected by the broker redelivery + resumability combination instead.
const defaultLockTTL = 30 * time.Minute

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisDispatchLock)(nil)

// RedisDispatchLock is a SETNX-based mutual-exclusion token keyed per
// campaign.
type RedisDispatchLock struct {
	client *goredis.Client
	ttl    time.Duration
	token  string
}

func NewRedisDispatchLock(client *goredis.Client, ownerToken string) (*RedisDispatchLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(ownerToken) == "" {
		return nil, fmt.Errorf("owner token is required")
	}

	return &RedisDispatchLock{
		client: client,
		ttl:    defaultLockTTL,
		token:  ownerToken,
	}, nil
}

func (l *RedisDispatchLock) Acquire(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("dispatch lock is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("lock key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ok, err := l.client.SetNX(ctx, lockKey(key), l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	return ok, nil
}

func (l *RedisDispatchLock) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("dispatch lock is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Only the holder may release; a stale worker must not drop a lock
	// re-acquired by someone else after TTL expiry.
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(key)}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release dispatch lock: %w", err)
	}
	return nil
}

func lockKey(key string) string {
	return "dispatchlock:" + strings.TrimSpace(key)
}
