// Package lock provides the per-workflow run lock taken by workers before a
// mirror run.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock is already held")

// DefaultTTL bounds how long a crashed worker can block a workflow.
const DefaultTTL = 15 * time.Minute

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive, expiring locks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	Close() error
}

// RunKey is the lock key of one workflow.
func RunKey(workflowID string) string {
	return "chanmirror:run:" + workflowID
}
