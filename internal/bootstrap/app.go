package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	infrahttp "github.com/jonesrussell/content-studio/infrastructure/http"
	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/channels"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/database"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/drafting"
	"github.com/jonesrussell/content-studio/internal/ingest"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/publish"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

// App holds every long-lived component a command may need.
type App struct {
	Config    *config.Config
	Log       infralogger.Logger
	Registry  *prometheus.Registry
	Telemetry *telemetry.Provider

	SQL   *sqlx.DB
	Store *database.DB
	Redis *redis.Client
	Lock  lock.Locker

	Drafting *drafting.Service
	Queue    *queue.Manager
	Publish  *publish.Service
	// Ingest is nil when Gmail is not configured.
	Ingest *ingest.Service
}

// New connects to storage and builds the services. Callers must Close the
// returned App.
func New(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Telemetry = telemetry.NewProvider(app.Registry)

	if err := app.setupStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupServices(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	db, err := database.NewPostgresConnection(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.SQL = db
	a.Store = database.New(db)
	a.Log.Info("Database connected",
		infralogger.String("host", a.Config.Database.Host),
		infralogger.String("database", a.Config.Database.Database),
	)

	if a.Redis, err = SetupRedis(ctx, a.Config, a.Log); err != nil {
		return err
	}
	a.Lock, err = SetupLocker(a.Config, a.SQL, a.Redis, a.Log)
	return err
}

func (a *App) setupServices(ctx context.Context) error {
	cfg := a.Config

	generator := drafting.NewAnthropic(cfg.Anthropic, infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout: cfg.Anthropic.Timeout,
	}))
	limits := drafting.Limits{
		MaxLinkedIn: cfg.Publish.MaxLinkedInDraft,
		MaxBlog:     cfg.Publish.MaxBlogDraft,
		MaxTotal:    cfg.Publish.MaxTotalDrafts,
	}
	a.Drafting = drafting.NewService(a.Store, generator, limits, cfg.Anthropic.Timeout, a.Telemetry, a.Log)
	a.Queue = queue.NewManager(a.Store, a.Lock, a.Log)

	registry := channels.Registry{
		domain.ContentTypeLinkedIn: channels.NewLinkedIn(cfg.LinkedIn, infrahttp.NewClient(&infrahttp.ClientConfig{
			Timeout: cfg.LinkedIn.Timeout,
		}), a.Log),
		domain.ContentTypeBlog: channels.NewBlog(),
	}
	publisher, err := publish.NewService(a.Store, a.Lock, registry, cfg.Publish.Timeout, a.Telemetry, a.Log)
	if err != nil {
		return fmt.Errorf("create publish service: %w", err)
	}
	a.Publish = publisher

	if !cfg.Gmail.Enabled() {
		a.Log.Info("Email ingest disabled: gmail is not configured")
		return nil
	}
	mailbox, err := ingest.NewGmail(ctx, cfg.Gmail)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}
	a.Ingest = ingest.NewService(mailbox, a.Drafting, a.Lock, a.Telemetry, a.Log)
	a.Log.Info("Email ingest enabled", infralogger.Int("allowed_senders", len(cfg.Gmail.AllowedSenders)))
	return nil
}

// PingRedis returns nil when redis is not configured, for the health check.
func (a *App) PingRedis() func(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return a.Redis.Ping(ctx).Err()
	}
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close() {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.SQL != nil {
		errs = append(errs, a.SQL.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Error("Failed to close connections", infralogger.Error(err))
	}
}
