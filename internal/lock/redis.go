package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "content-studio:lock:"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis holds leases as SET NX PX keys so several instances share them.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

var _ Locker = (*Redis)(nil)

// NewRedis returns a Redis-backed locker. Zero durations take the defaults.
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Redis{client: client, ttl: ttl, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	return poll(ctx, key, r.wait, func(ctx context.Context) (Lease, error) {
		return r.TryAcquire(ctx, key)
	})
}

func (r *Redis) TryAcquire(ctx context.Context, key string) (Lease, error) {
	lease := &redisLease{client: r.client, key: redisKeyPrefix + key, token: uuid.NewString()}

	ok, err := r.client.SetNX(ctx, lease.key, lease.token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string

	once sync.Once
	err  error
}

// Release deletes the key only while it still carries this lease's token.
func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
		switch {
		case err != nil:
			l.err = fmt.Errorf("release lock: %w", err)
		case result == 0:
			l.err = ErrNotHeld
		}
	})
	return l.err
}
