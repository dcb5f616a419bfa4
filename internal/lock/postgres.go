package lock

import (
	"context"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const advisoryNamespace = "content-studio:"

// Postgres holds session-level advisory locks, each on its own pooled
// connection for the life of the lease.
type Postgres struct {
	db   *sqlx.DB
	wait time.Duration
}

var _ Locker = (*Postgres)(nil)

// NewPostgres returns an advisory-lock locker. Zero wait takes the default.
func NewPostgres(db *sqlx.DB, wait time.Duration) *Postgres {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Postgres{db: db, wait: wait}
}

// AdvisoryKey maps a lease name onto the bigint keyspace of pg_advisory_lock.
func AdvisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(advisoryNamespace + key))
	return int64(h.Sum64()) //nolint:gosec // wraparound is fine for a hash
}

func (p *Postgres) Acquire(ctx context.Context, key string) (Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()

	conn, err := p.db.Connx(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil {
			return nil, waitErr(ctx, key)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	id := AdvisoryKey(key)
	if _, err = conn.ExecContext(waitCtx, `SELECT pg_advisory_lock($1)`, id); err != nil {
		_ = conn.Close()
		if waitCtx.Err() != nil {
			return nil, waitErr(ctx, key)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return &pgLease{conn: conn, id: id}, nil
}

func (p *Postgres) TryAcquire(ctx context.Context, key string) (Lease, error) {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	id := AdvisoryKey(key)
	var ok bool
	if err = conn.GetContext(ctx, &ok, `SELECT pg_try_advisory_lock($1)`, id); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, nil
	}
	return &pgLease{conn: conn, id: id}, nil
}

type pgLease struct {
	conn *sqlx.Conn
	id   int64

	once sync.Once
	err  error
}

// Release unlocks and returns the connection to the pool. When the unlock
// fails the connection is discarded instead, ending the session and the lock.
func (l *pgLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		defer func() { _ = l.conn.Close() }()

		var released bool
		if err := l.conn.GetContext(ctx, &released, `SELECT pg_advisory_unlock($1)`, l.id); err != nil {
			l.err = fmt.Errorf("release lock: %w", err)
			_ = l.conn.Raw(func(any) error { return driver.ErrBadConn })
			return
		}
		if !released {
			l.err = ErrNotHeld
		}
	})
	return l.err
}
