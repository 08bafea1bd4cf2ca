package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker holds locks in process memory. Expired locks may be taken over.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLease
	now   func() time.Time
	nextN uint64
}

type localLease struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an in-process Locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), now: time.Now}
}

// TryLock acquires key for ttl or returns ErrLocked.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.held[key]; ok && now.Before(lease.expires) {
		return nil, ErrLocked
	}
	l.nextN++
	token := l.nextN
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[key]; ok && lease.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
