// Package lock serializes automation triggers, in-process or across replicas.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock is held by another process")

// ReleaseFunc releases a held lock. Releasing twice is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker acquires named, expiring locks without blocking.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
