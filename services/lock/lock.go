// Package lock serializes work on a key across goroutines or processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned when the key is already held
var ErrLocked = errors.New("lock is already held")

// Locker acquires exclusive, expiring locks. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalLocker is an in-process Locker
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrLocked
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == expires {
				delete(l.held, key)
			}
		})
	}, nil
}
