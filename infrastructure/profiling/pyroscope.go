package profiling

import (
	"fmt"
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
)

const defaultPyroscopeURL = "http://pyroscope:4040"

// Profiler wraps the running Pyroscope agent. A nil *Profiler is valid.
type Profiler struct {
	profiler *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling when enabled. It returns
// (nil, nil) when disabled.
func StartPyroscope(cfg Config, serviceName, version string, log logger.Logger) (*Profiler, error) {
	if !cfg.Continuous {
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	serverURL := cfg.PyroscopeURL
	if serverURL == "" {
		serverURL = defaultPyroscopeURL
	}
	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: serviceName,
		ServerAddress:   serverURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": env,
			"version":     version,
			"hostname":    hostname,
			"go_version":  runtime.Version(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}

	log.Info("Continuous profiling started",
		logger.String("application", serviceName),
		logger.String("server", serverURL),
		logger.String("environment", env),
	)
	return &Profiler{profiler: p}, nil
}

// Stop flushes and stops the agent.
func (p *Profiler) Stop() error {
	if p == nil || p.profiler == nil {
		return nil
	}
	return p.profiler.Stop()
}
