package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Name     string         `yaml:"name"`
	Timeout  time.Duration  `env:"SAMPLE_TIMEOUT" yaml:"timeout"`
	Enabled  bool           `env:"SAMPLE_ENABLED" yaml:"enabled"`
	Senders  []string       `env:"SAMPLE_SENDERS" yaml:"senders"`
	Database DatabaseConfig `yaml:"database"`
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeYAML(t, "name: studio\ntimeout: 15s\ndatabase:\n  host: db\n  port: 6543\n")

	cfg, err := Load[sampleConfig](path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != "studio" {
		t.Errorf("Name = %q, want studio", cfg.Name)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.Database.Host != "db" || cfg.Database.Port != 6543 {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoad_MissingFileUsesZeroValue(t *testing.T) {
	cfg, err := Load[sampleConfig](filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != "" {
		t.Errorf("Name = %q, want empty", cfg.Name)
	}
}

func TestLoadWithDefaults_EnvWinsOverDefaults(t *testing.T) {
	t.Setenv("SAMPLE_TIMEOUT", "2m")
	t.Setenv("SAMPLE_ENABLED", "yes")
	t.Setenv("SAMPLE_SENDERS", "a@example.com, b@example.com")
	t.Setenv("POSTGRES_HOST", "pg.internal")

	path := writeYAML(t, "timeout: 10s\n")
	cfg, err := LoadWithDefaults(path, func(c *sampleConfig) {
		c.Timeout = time.Second
		c.Database.SetDefaults()
	})
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if !cfg.Enabled {
		t.Error("Enabled = false, want true")
	}
	if len(cfg.Senders) != 2 || cfg.Senders[1] != "b@example.com" {
		t.Errorf("Senders = %v", cfg.Senders)
	}
	if cfg.Database.Host != "pg.internal" {
		t.Errorf("Database.Host = %q, want pg.internal", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeYAML(t, "name: [unterminated\n")
	if _, err := Load[sampleConfig](path); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	t.Parallel()

	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p@ss", Database: "studio", SSLMode: "disable"}
	want := "postgres://u:p%40ss@h:5432/studio?sslmode=disable"
	if got := c.URL(); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	t.Parallel()

	ok := LoggingConfig{Level: "info", Format: "console"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := LoggingConfig{Level: "loud", Format: "json"}
	err := bad.Validate()
	var vErr *ValidationError
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if ve, isVE := err.(*ValidationError); !isVE {
		t.Fatalf("error type = %T, want *ValidationError", err)
	} else {
		vErr = ve
	}
	if vErr.Field != "logging.level" {
		t.Errorf("Field = %q, want logging.level", vErr.Field)
	}
}
