package lock

import "context"

// Locker provides per-campaign mutual exclusion so two workers never dispatch
// the same campaign concurrently.
type Locker interface {
	// Acquire returns false without error when the lock is already held.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
