// Package lock provides the named leases that serialize queue mutations and
// publish cycles per content type.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTTL bounds how long a crashed holder can keep a distributed lease.
	DefaultTTL = 2 * time.Minute

	// DefaultWait is how long Acquire blocks before giving up.
	DefaultWait = 10 * time.Second

	defaultRetryDelay = 50 * time.Millisecond
	maxRetryDelay     = 500 * time.Millisecond
)

var (
	// ErrNotAcquired is returned by Acquire when the wait elapses.
	ErrNotAcquired = errors.New("lock not acquired")

	// ErrNotHeld is returned when releasing a lease that expired or was taken over.
	ErrNotHeld = errors.New("lock not held")
)

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases by name.
type Locker interface {
	// Acquire blocks until the lease is held, the wait elapses or ctx ends.
	Acquire(ctx context.Context, key string) (Lease, error)
	// TryAcquire never blocks. A nil lease with a nil error means the key is held elsewhere.
	TryAcquire(ctx context.Context, key string) (Lease, error)
}

// QueueKey names the lease guarding the queue of one content type.
func QueueKey(contentType string) string { return "queue:" + contentType }

// PublishKey names the lease guarding the publish cycle of one content type.
func PublishKey(contentType string) string { return "publish:" + contentType }

// poll retries try with a capped backoff until it succeeds or the wait
// elapses. It is shared by the lockers that cannot block natively.
func poll(ctx context.Context, key string, wait time.Duration, try func(context.Context) (Lease, error)) (Lease, error) {
	waitCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	delay := defaultRetryDelay
	for {
		lease, err := try(waitCtx)
		if err != nil {
			return nil, err
		}
		if lease != nil {
			return lease, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, waitErr(ctx, key)
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// waitErr distinguishes the caller giving up from the lock wait elapsing.
func waitErr(parent context.Context, key string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrNotAcquired, key)
}
