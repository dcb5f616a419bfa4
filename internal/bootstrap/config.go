// Package bootstrap wires configuration, storage and services for every
// content-studio command.
package bootstrap

import (
	"fmt"

	infraconfig "github.com/jonesrussell/content-studio/infrastructure/config"
	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/config"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "config.yml"

// LoadConfig loads and validates configuration. serve selects the stricter
// validation the HTTP server needs.
func LoadConfig(path string, serve bool) (*config.Config, error) {
	if path == "" {
		path = infraconfig.GetConfigPath(DefaultConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	validate := cfg.Validate
	if serve {
		validate = cfg.ValidateServe
	}
	if validationErr := validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// CreateLogger creates a logger instance from configuration.
func CreateLogger(cfg *config.Config, command string) (infralogger.Logger, error) {
	log, err := infralogger.New(infralogger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		infralogger.String("service", cfg.Service.Name),
		infralogger.String("version", cfg.Service.Version),
		infralogger.String("command", command),
	), nil
}
