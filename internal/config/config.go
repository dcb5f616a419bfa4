// Package config loads the content-studio configuration.
package config

import (
	"time"

	infraconfig "github.com/jonesrussell/content-studio/infrastructure/config"
	"github.com/jonesrussell/content-studio/infrastructure/profiling"
)

const (
	defaultServiceName = "content-studio"
	defaultServicePort = 8070
	defaultVersion     = "0.1.0"
	defaultDBName      = "content_studio"
	defaultDBUser      = "postgres"

	defaultLockTTL  = 2 * time.Minute
	defaultLockWait = 10 * time.Second

	defaultTokenTTL = 12 * time.Hour

	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 8000
	defaultAnthropicTimeout   = 120 * time.Second

	defaultLinkedInAPIURL  = "https://api.linkedin.com"
	defaultLinkedInTimeout = 20 * time.Second

	defaultGmailMaxResults  = 10
	defaultGmailRedirectURL = "http://localhost"

	defaultPublishTimeout   = 60 * time.Second
	defaultMaxLinkedInDraft = 3
	defaultMaxBlogDraft     = 2
	defaultMaxTotalDrafts   = 5

	defaultLinkedInSchedule = "0 9 * * 1-5"
	defaultBlogSchedule     = "0 10 * * 2,4"
	defaultIngestSchedule   = "*/15 * * * *"
)

// Lock drivers.
const (
	LockDriverLocal    = "local"
	LockDriverRedis    = "redis"
	LockDriverPostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	Service   ServiceConfig              `yaml:"service"`
	Database  infraconfig.DatabaseConfig `yaml:"database"`
	Redis     infraconfig.RedisConfig    `yaml:"redis"`
	Lock      LockConfig                 `yaml:"lock"`
	Auth      AuthConfig                 `yaml:"auth"`
	Logging   infraconfig.LoggingConfig  `yaml:"logging"`
	Anthropic AnthropicConfig            `yaml:"anthropic"`
	LinkedIn  LinkedInConfig             `yaml:"linkedin"`
	Gmail     GmailConfig                `yaml:"gmail"`
	Publish   PublishConfig              `yaml:"publish"`
	Scheduler SchedulerConfig            `yaml:"scheduler"`
	Profiling profiling.Config           `yaml:"profiling"`
}

type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"CONTENT_STUDIO_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"           yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS"        yaml:"cors_origins"`
}

// LockConfig selects the per-type lease implementation. Wait bounds blocking
// acquisition for queue operations.
type LockConfig struct {
	Driver string        `env:"LOCK_DRIVER" yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
	Wait   time.Duration `yaml:"wait"`
}

type AuthConfig struct {
	Password   string        `env:"AUTH_PASSWORD"   yaml:"password"`    //nolint:gosec // operator gate
	JWTSecret  string        `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`  //nolint:gosec // token signing key
	TokenTTL   time.Duration `yaml:"token_ttl"`
	CronSecret string        `env:"CRON_SECRET"     yaml:"cron_secret"` //nolint:gosec // trigger bearer token
}

type AnthropicConfig struct {
	APIKey    string        `env:"ANTHROPIC_API_KEY"  yaml:"api_key"` //nolint:gosec // API credential
	BaseURL   string        `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model     string        `env:"ANTHROPIC_MODEL"    yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LinkedInConfig struct {
	AccessToken string        `env:"LINKEDIN_ACCESS_TOKEN" yaml:"access_token"` //nolint:gosec // API credential
	PersonURN   string        `env:"LINKEDIN_PERSON_URN"   yaml:"person_urn"`
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GmailConfig enables email ingest when ClientID and RefreshToken are set.
type GmailConfig struct {
	ClientID       string   `env:"GMAIL_CLIENT_ID"       yaml:"client_id"`
	ClientSecret   string   `env:"GMAIL_CLIENT_SECRET"   yaml:"client_secret"` //nolint:gosec // OAuth client
	RefreshToken   string   `env:"GMAIL_REFRESH_TOKEN"   yaml:"refresh_token"` //nolint:gosec // OAuth token
	AllowedSenders []string `env:"GMAIL_ALLOWED_SENDERS" yaml:"allowed_senders"`
	MaxResults     int64    `yaml:"max_results"`
	RedirectURL    string   `yaml:"redirect_url"`
}

// Enabled reports whether ingest has credentials and senders.
func (g *GmailConfig) Enabled() bool {
	return g.ClientID != "" && g.RefreshToken != "" && len(g.AllowedSenders) > 0
}

// PublishConfig bounds channel calls and draft generation.
type PublishConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxLinkedInDraft int           `yaml:"max_linkedin_drafts"`
	MaxBlogDraft     int           `yaml:"max_blog_drafts"`
	MaxTotalDrafts   int           `yaml:"max_total_drafts"`
}

// SchedulerConfig drives the optional in-process trigger source.
type SchedulerConfig struct {
	Enabled          bool   `env:"SCHEDULER_ENABLED" yaml:"enabled"`
	LinkedInSchedule string `yaml:"linkedin"`
	BlogSchedule     string `yaml:"blog"`
	IngestSchedule   string `yaml:"ingest"`
}

// Load reads path, applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	cfg.Logging.SetDefaults()
	setLockDefaults(&cfg.Lock, cfg.Redis.Enabled())
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = defaultTokenTTL
	}
	setAnthropicDefaults(&cfg.Anthropic)
	setLinkedInDefaults(&cfg.LinkedIn)
	setGmailDefaults(&cfg.Gmail)
	setPublishDefaults(&cfg.Publish)
	setSchedulerDefaults(&cfg.Scheduler)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setDatabaseDefaults(db *infraconfig.DatabaseConfig) {
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	db.SetDefaults()
}

// setLockDefaults picks redis when an address is configured and postgres
// otherwise, so multiple replicas never fall back to in-process locks.
func setLockDefaults(l *LockConfig, redisEnabled bool) {
	if l.Driver == "" {
		l.Driver = LockDriverPostgres
		if redisEnabled {
			l.Driver = LockDriverRedis
		}
	}
	if l.TTL == 0 {
		l.TTL = defaultLockTTL
	}
	if l.Wait == 0 {
		l.Wait = defaultLockWait
	}
}

func setAnthropicDefaults(a *AnthropicConfig) {
	if a.Model == "" {
		a.Model = defaultAnthropicModel
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = defaultAnthropicMaxTokens
	}
	if a.Timeout == 0 {
		a.Timeout = defaultAnthropicTimeout
	}
}

func setLinkedInDefaults(li *LinkedInConfig) {
	if li.APIURL == "" {
		li.APIURL = defaultLinkedInAPIURL
	}
	if li.Timeout == 0 {
		li.Timeout = defaultLinkedInTimeout
	}
}

func setGmailDefaults(g *GmailConfig) {
	if g.MaxResults == 0 {
		g.MaxResults = defaultGmailMaxResults
	}
	if g.RedirectURL == "" {
		g.RedirectURL = defaultGmailRedirectURL
	}
}

func setPublishDefaults(p *PublishConfig) {
	if p.Timeout == 0 {
		p.Timeout = defaultPublishTimeout
	}
	if p.MaxLinkedInDraft == 0 {
		p.MaxLinkedInDraft = defaultMaxLinkedInDraft
	}
	if p.MaxBlogDraft == 0 {
		p.MaxBlogDraft = defaultMaxBlogDraft
	}
	if p.MaxTotalDrafts == 0 {
		p.MaxTotalDrafts = defaultMaxTotalDrafts
	}
}

func setSchedulerDefaults(s *SchedulerConfig) {
	if s.LinkedInSchedule == "" {
		s.LinkedInSchedule = defaultLinkedInSchedule
	}
	if s.BlogSchedule == "" {
		s.BlogSchedule = defaultBlogSchedule
	}
	if s.IngestSchedule == "" {
		s.IngestSchedule = defaultIngestSchedule
	}
}

// Validate checks the settings every command needs. Secrets used only by
// `serve` are checked by ValidateServe.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := infraconfig.ValidateOneOf("lock.driver", c.Lock.Driver,
		LockDriverLocal, LockDriverRedis, LockDriverPostgres); err != nil {
		return err
	}
	if c.Lock.Driver == LockDriverRedis && !c.Redis.Enabled() {
		return &infraconfig.ValidationError{Field: "redis.address", Message: "is required when lock.driver is redis"}
	}
	// A redis lease expires on its own, so it must outlive a whole cycle.
	if c.Lock.Driver == LockDriverRedis && c.Lock.TTL <= c.Publish.Timeout {
		return &infraconfig.ValidationError{Field: "lock.ttl", Message: "must exceed publish.timeout when lock.driver is redis"}
	}
	if c.Publish.MaxLinkedInDraft < 0 || c.Publish.MaxBlogDraft < 0 || c.Publish.MaxTotalDrafts < 1 {
		return &infraconfig.ValidationError{Field: "publish", Message: "draft caps must be non-negative and total at least 1"}
	}
	return nil
}

// ValidateServe additionally requires the HTTP surface secrets.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("auth.password", c.Auth.Password); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("auth.jwt_secret", c.Auth.JWTSecret); err != nil {
		return err
	}
	return infraconfig.ValidateRequired("auth.cron_secret", c.Auth.CronSecret)
}
