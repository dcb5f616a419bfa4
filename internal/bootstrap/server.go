package bootstrap

import (
	"context"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/infrastructure/metrics"
	"github.com/jonesrussell/content-studio/infrastructure/profiling"
	"github.com/jonesrussell/content-studio/internal/api"
	"github.com/jonesrussell/content-studio/internal/scheduler"
)

const (
	shutdownTimeout  = 30 * time.Second
	metricsNamespace = "content_studio"
)

// NewScheduler builds the in-process trigger source. The ingest job is only
// registered when email ingest is configured.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Log, a.Config.Publish.Timeout+a.Config.Anthropic.Timeout)

	var ingester scheduler.Ingester
	if a.Ingest != nil {
		ingester = a.Ingest
	}
	if err := scheduler.Register(s, a.Config.Scheduler, a.Publish, ingester, a.Log); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	return s, nil
}

// Serve runs the HTTP server, plus the scheduler when enabled, until ctx is
// cancelled or a termination signal arrives.
func (a *App) Serve(ctx context.Context) error {
	pprofServer := profiling.StartPprof(a.Config.Profiling, a.Log)
	profiler, err := profiling.StartPyroscope(a.Config.Profiling, a.Config.Service.Name, a.Config.Service.Version, a.Log)
	if err != nil {
		a.Log.Warn("Continuous profiling unavailable", infralogger.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	var sched *scheduler.Scheduler
	if a.Config.Scheduler.Enabled {
		if sched, err = a.NewScheduler(); err != nil {
			return err
		}
		sched.Start()
	}

	router := api.NewRouter(api.Deps{
		Config:   a.Config,
		Store:    a.Store,
		Drafting: a.Drafting,
		Queue:    a.Queue,
		Publish:  a.Publish,
		Ingest:   a.Ingest,
		Gatherer: a.Registry,
		Metrics:  metrics.NewHTTPMetrics(a.Registry, metricsNamespace),
		Logger:   a.Log,
	})
	runErr := router.NewServer(a.Store.Ping, a.PingRedis()).Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if sched != nil {
		if stopErr := sched.Stop(stopCtx); stopErr != nil {
			a.Log.Error("Failed to stop scheduler", infralogger.Error(stopErr))
		}
	}
	if pprofServer != nil {
		_ = pprofServer.Shutdown(stopCtx)
	}

	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	return nil
}
