package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	infraredis "github.com/jonesrussell/content-studio/infrastructure/redis"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/lock"
)

// SetupRedis connects when an address is configured. It returns nil
// otherwise.
func SetupRedis(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		return nil, nil //nolint:nilnil // redis is optional
	}
	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Redis connected", infralogger.String("address", cfg.Redis.Address))
	return client, nil
}

// SetupLocker picks the lease backend named by lock.driver.
func SetupLocker(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, log infralogger.Logger) (lock.Locker, error) {
	var locker lock.Locker
	switch cfg.Lock.Driver {
	case config.LockDriverLocal:
		log.Warn("Using in-process locks; run a single replica only")
		locker = lock.NewLocal(cfg.Lock.Wait)
	case config.LockDriverRedis:
		if rdb == nil {
			return nil, fmt.Errorf("lock driver %q needs a redis connection", cfg.Lock.Driver)
		}
		locker = lock.NewRedis(rdb, cfg.Lock.TTL, cfg.Lock.Wait)
	case config.LockDriverPostgres:
		locker = lock.NewPostgres(db, cfg.Lock.Wait)
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}

	log.Info("Lock backend ready",
		infralogger.String("driver", cfg.Lock.Driver),
		infralogger.Duration("wait", cfg.Lock.Wait),
	)
	return locker, nil
}
