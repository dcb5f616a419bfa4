// Package api is the studio's HTTP surface: the operator dashboard API, the
// cron trigger endpoints and the public blog feed.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	infragin "github.com/jonesrussell/content-studio/infrastructure/gin"
	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/infrastructure/metrics"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/drafting"
	"github.com/jonesrussell/content-studio/internal/ingest"
	"github.com/jonesrussell/content-studio/internal/publish"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/store"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 5 * time.Minute
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Deps are the services behind the API. Ingest is nil when email ingest is
// not configured, Metrics is nil to skip request metrics.
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Drafting *drafting.Service
	Queue    *queue.Manager
	Publish  *publish.Service
	Ingest   *ingest.Service
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics
	Logger   logger.Logger
}

// Router holds the API dependencies.
type Router struct {
	cfg      *config.Config
	store    store.Store
	drafting *drafting.Service
	queue    *queue.Manager
	publish  *publish.Service
	ingest   *ingest.Service
	gatherer prometheus.Gatherer
	metrics  *metrics.HTTPMetrics
	log      logger.Logger
	now      func() time.Time
}

func NewRouter(d Deps) *Router {
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		cfg:      d.Config,
		store:    d.Store,
		drafting: d.Drafting,
		queue:    d.Queue,
		publish:  d.Publish,
		ingest:   d.Ingest,
		gatherer: gatherer,
		metrics:  d.Metrics,
		log:      log,
		now:      time.Now,
	}
}

// NewServer builds the HTTP server with health checks for the database and,
// when given, redis.
func (r *Router) NewServer(pingDB, pingRedis func(ctx context.Context) error) *infragin.Server {
	builder := infragin.NewServerBuilder(r.cfg.Service.Name, r.cfg.Service.Port).
		WithLogger(r.log).
		WithDebug(r.cfg.Service.Debug).
		WithVersion(r.cfg.Service.Version).
		WithCORSOrigins(r.cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithDatabaseHealthCheck(withTimeout(pingDB)).
		WithRoutes(r.SetupRoutes)

	if pingRedis != nil {
		builder = builder.WithRedisHealthCheck(withTimeout(pingRedis))
	}
	if r.metrics != nil {
		builder = builder.WithMiddleware(r.metrics.Middleware())
	}
	return builder.Build()
}

func withTimeout(ping func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		return ping(ctx)
	}
}

// SetupRoutes registers every service route. Health routes come from the
// server builder.
func (r *Router) SetupRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(metrics.Handler(r.gatherer)))

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", r.login)

	// Public feed
	v1.GET("/blog-posts", r.listBlogPosts)
	v1.GET("/blog-posts/:slug", r.getBlogPost)

	// Trigger sources
	cron := v1.Group("/cron", r.cronAuth())
	cron.GET("/publish/:type", r.runPublish)
	cron.POST("/publish/:type", r.runPublish)
	cron.GET("/email-ingest", r.runIngest)
	cron.POST("/email-ingest", r.runIngest)

	ops := infragin.ProtectedGroup(v1, "", r.cfg.Auth.JWTSecret)

	ideas := ops.Group("/ideas")
	ideas.GET("", r.listIdeas)
	ideas.POST("", r.createIdea)
	ideas.POST("/:id/generating", r.markGenerating)
	ideas.PATCH("/:id/status", r.updateIdeaStatus)

	ops.POST("/generate", r.generate)

	content := ops.Group("/content")
	content.GET("", r.listContent)
	content.GET("/:id", r.getContent)
	content.PATCH("/:id", r.updateContent)
	content.POST("/:id/regenerate", r.regenerateContent)
	content.POST("/:id/retry", r.retryContent)

	q := ops.Group("/queue")
	q.GET("", r.getQueue)
	q.POST("/add", r.addToQueue)
	q.POST("/add-single", r.addSingleToQueue)
	q.POST("/reorder", r.reorderQueue)
	q.DELETE("/:id", r.removeFromQueue)

	settings := ops.Group("/settings")
	settings.GET("", r.getSettings)
	settings.GET("/:type", r.getSetting)
	settings.PUT("/:type", r.updateSetting)

	ops.GET("/stats", r.getStats)
	ops.GET("/schema", r.getSchema)
}
