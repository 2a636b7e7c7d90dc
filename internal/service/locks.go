package service

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// KeyedLocker serializes writers per resource key. Waiting is bounded by the
// caller's context and the configured timeout; a timed out wait is reported
// as a conflict so the client can retry.
type KeyedLocker struct {
	mu      sync.Mutex
	locks   map[string]*keyedLock
	timeout time.Duration
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates a locker. A non-positive timeout waits on the context only.
func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock), timeout: timeout}
}

// Lock acquires key and returns the function releasing it.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	var expired <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	case <-expired:
		l.release(key, entry)
		return nil, apperrors.NewConflict("resource is busy, retry later", map[string]any{"resource": key})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(key, entry)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyedLocker) release(key string, entry *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
