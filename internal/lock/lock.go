package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout indicates the wait for the lock exceeded the caller's budget.
// It is a normal, retryable outcome under contention, distinct from business
// failures such as insufficient stock.
var ErrLockTimeout = errors.New("lock wait timed out")

// Lease is a held lock. Release is idempotent and must be called on every
// exit path; a lease whose hold timeout lapsed is already released.
type Lease interface {
	Release() error
}

// Locker grants exclusive, non-reentrant access to a named resource.
// Competing callers are granted the lock in arrival order. The wait budget
// bounds how long Acquire blocks; the hold budget bounds how long an
// unreleased lease keeps the resource unavailable if its holder crashes.
type Locker interface {
	Acquire(ctx context.Context, key string, wait, hold time.Duration) (Lease, error)
}
