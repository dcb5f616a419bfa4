package lock

import (
	"context"
	"sync"
	"time"
)

// Local serializes leases inside one process. It is used by tests and by
// single-instance deployments without Redis.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

var _ Locker = (*Local)(nil)

// NewLocal returns an in-process locker. A zero wait blocks until ctx ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *Local) Acquire(ctx context.Context, key string) (Lease, error) {
	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &localLease{ch: ch}, nil
	case <-waitCtx.Done():
		return nil, waitErr(ctx, key)
	}
}

func (l *Local) TryAcquire(_ context.Context, key string) (Lease, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &localLease{ch: ch}, nil
	default:
		return nil, nil
	}
}

type localLease struct {
	once sync.Once
	ch   chan struct{}
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
