// Package database is the Postgres implementation of store.Store.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	infraconfig "github.com/jonesrussell/content-studio/infrastructure/config"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/store"
)

const (
	pingTimeout = 5 * time.Second

	pqUniqueViolation = "23505"
)

var _ store.Store = (*DB)(nil)

// NewPostgresConnection opens a pooled connection and verifies it.
func NewPostgresConnection(ctx context.Context, cfg infraconfig.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}
	return db, nil
}

// DB is the store backed by a connection pool. Its Tx methods run each
// statement on its own; InTx wraps several in one transaction.
type DB struct {
	*Repository
	db *sqlx.DB
}

// New wraps an open pool.
func New(db *sqlx.DB) *DB {
	return &DB{Repository: &Repository{q: db}, db: db}
}

// Ping is used by the health check.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// InTx runs fn in a READ COMMITTED transaction. The queue position unique
// constraint is deferred, so intermediate duplicates during a shift only fail
// at commit.
func (d *DB) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Persistence("begin transaction", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Repository{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Message: "queue positions collided at commit"}
		}
		return domain.Persistence("commit", err)
	}
	return nil
}

// Repository runs queries against either the pool or a transaction.
type Repository struct {
	q sqlx.ExtContext
}

// execExpectOneRow returns a NotFoundError when no row was affected.
func (r *Repository) execExpectOneRow(ctx context.Context, resource, id, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
