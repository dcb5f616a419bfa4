// Package profiling starts the optional pprof endpoint and Pyroscope agent.
package profiling

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
)

const defaultPprofPort = 6060

// Config controls both profilers.
type Config struct {
	Pprof        bool   `env:"ENABLE_PROFILING"            yaml:"pprof"`
	PprofPort    int    `env:"PPROF_PORT"                  yaml:"pprof_port"`
	Continuous   bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"continuous"`
	PyroscopeURL string `env:"PYROSCOPE_SERVER_URL"        yaml:"pyroscope_url"`
	Environment  string `env:"PYROSCOPE_ENVIRONMENT"       yaml:"environment"`
}

// StartPprof serves /debug/pprof on localhost only. It returns the server so
// callers can shut it down, or nil when disabled.
func StartPprof(cfg Config, log logger.Logger) *http.Server {
	if !cfg.Pprof {
		return nil
	}
	port := cfg.PprofPort
	if port == 0 {
		port = defaultPprofPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              net.JoinHostPort("localhost", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("pprof listening", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("pprof server stopped", logger.Error(err))
		}
	}()
	return srv
}
