package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/bootstrap"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/lock"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	path := writeConfig(t, `
service:
  port: 9090
lock:
  driver: local
`)

	cfg, err := bootstrap.LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, config.LockDriverLocal, cfg.Lock.Driver)
	assert.Equal(t, 60*time.Second, cfg.Publish.Timeout)

	_, err = bootstrap.LoadConfig(path, true)
	require.Error(t, err, "serve requires auth secrets")

	t.Setenv("AUTH_PASSWORD", "pw")
	t.Setenv("AUTH_JWT_SECRET", "jwt")
	t.Setenv("CRON_SECRET", "cron")
	_, err = bootstrap.LoadConfig(path, true)
	require.NoError(t, err)
}

func TestLoadConfig_InvalidLockDriver(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	path := writeConfig(t, "lock:\n  driver: etcd\n")

	_, err := bootstrap.LoadConfig(path, false)
	require.Error(t, err)
}

func TestSetupLocker(t *testing.T) {
	log := logger.NewNop()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfgFor := func(driver string) *config.Config {
		return &config.Config{Lock: config.LockConfig{Driver: driver, TTL: time.Minute, Wait: time.Second}}
	}

	t.Run("local", func(t *testing.T) {
		locker, err := bootstrap.SetupLocker(cfgFor(config.LockDriverLocal), nil, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &lock.Local{}, locker)
	})

	t.Run("redis", func(t *testing.T) {
		locker, err := bootstrap.SetupLocker(cfgFor(config.LockDriverRedis), nil, rdb, log)
		require.NoError(t, err)
		assert.IsType(t, &lock.Redis{}, locker)
	})

	t.Run("redis without a client", func(t *testing.T) {
		_, err := bootstrap.SetupLocker(cfgFor(config.LockDriverRedis), nil, nil, log)
		require.Error(t, err)
	})

	t.Run("postgres", func(t *testing.T) {
		locker, err := bootstrap.SetupLocker(cfgFor(config.LockDriverPostgres), &sqlx.DB{}, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &lock.Postgres{}, locker)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := bootstrap.SetupLocker(cfgFor("zookeeper"), nil, nil, log)
		require.Error(t, err)
	})
}
