// Package lock provides named, expiring mutual-exclusion leases used to keep
// a pipeline phase from running twice against the same stores.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by Acquire when another holder owns the key
var ErrLockHeld = errors.New("lock: already held")

// Locker hands out exclusive leases on keys
type Locker interface {
	// Acquire takes key for at most ttl. It never blocks waiting for the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock
type Lease interface {
	// Key returns the locked key
	Key() string
	// Release frees the key if this lease still owns it
	Release(ctx context.Context) error
}
