package database

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:blankimports // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       //nolint:blankimports // file source driver

	infraconfig "github.com/jonesrussell/content-studio/infrastructure/config"
	"github.com/jonesrussell/content-studio/infrastructure/logger"
)

// DefaultMigrationsPath is relative to the working directory; in the
// container image migrations live at /app/migrations.
const DefaultMigrationsPath = "migrations"

func newMigrator(cfg infraconfig.DatabaseConfig, dir string) (*migrate.Migrate, string, error) {
	if dir == "" {
		dir = DefaultMigrationsPath
	}
	if absPath, err := filepath.Abs(dir); err == nil {
		dir = absPath
	}

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		return nil, dir, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, dir, nil
}

// MigrateUp applies every pending migration.
func MigrateUp(cfg infraconfig.DatabaseConfig, dir string, log logger.Logger) error {
	m, path, err := newMigrator(cfg, dir)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No pending migrations", logger.String("migrations_path", path))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Migrations applied", logger.String("migrations_path", path))
	return nil
}

// MigrateDown rolls back steps migrations, at least one.
func MigrateDown(cfg infraconfig.DatabaseConfig, dir string, steps int, log logger.Logger) error {
	m, path, err := newMigrator(cfg, dir)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if steps <= 0 {
		steps = 1
	}

	if err = m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to roll back", logger.String("migrations_path", path))
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	log.Info("Migrations rolled back",
		logger.String("migrations_path", path),
		logger.Int("steps", steps),
	)
	return nil
}

// MigrationVersion reports the applied version; zero means none.
func MigrationVersion(cfg infraconfig.DatabaseConfig, dir string) (version uint, dirty bool, err error) {
	m, _, err := newMigrator(cfg, dir)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err = m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}
