package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker with the same contract as the
// ZooKeeper-backed one: FIFO grant order, bounded wait, hold auto-release.
// It serves single-node runs and tests; it cannot serialize across processes.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*keyQueue
}

type keyQueue struct {
	held    bool
	waiters []*waiter
}

type waiter struct {
	ready     chan struct{}
	granted   bool
	abandoned bool
}

// NewLocalLocker constructs a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*keyQueue)}
}

// Acquire blocks until the key is granted, the wait budget lapses, or the
// context ends. Grants follow arrival order.
func (l *LocalLocker) Acquire(ctx context.Context, key string, wait, hold time.Duration) (Lease, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	q, ok := l.keys[key]
	if !ok {
		q = &keyQueue{}
		l.keys[key] = q
	}
	if !q.held && len(q.waiters) == 0 {
		q.held = true
		l.mu.Unlock()
		return l.newLease(key, hold), nil
	}
	w := &waiter{ready: make(chan struct{})}
	q.waiters = append(q.waiters, w)
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-w.ready:
		return l.newLease(key, hold), nil
	case <-timer.C:
		l.abandon(key, w)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.abandon(key, w)
		return nil, ctx.Err()
	}
}

// abandon withdraws a waiter. If the grant raced the timeout, the waiter
// already holds the lock and must pass it on.
func (l *LocalLocker) abandon(key string, w *waiter) {
	l.mu.Lock()
	if !w.granted {
		w.abandoned = true
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.release(key)
}

func (l *LocalLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.keys[key]
	if !ok {
		return
	}
	for len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		if next.abandoned {
			continue
		}
		next.granted = true
		close(next.ready)
		return
	}
	q.held = false
	if len(q.waiters) == 0 {
		delete(l.keys, key)
	}
}

func (l *LocalLocker) newLease(key string, hold time.Duration) *localLease {
	lease := &localLease{locker: l, key: key}
	if hold > 0 {
		lease.holdTimer = time.AfterFunc(hold, func() { _ = lease.Release() })
	}
	return lease
}

type localLease struct {
	locker    *LocalLocker
	key       string
	holdTimer *time.Timer
	once      sync.Once
}

func (le *localLease) Release() error {
	le.once.Do(func() {
		if le.holdTimer != nil {
			le.holdTimer.Stop()
		}
		le.locker.release(le.key)
	})
	return nil
}
