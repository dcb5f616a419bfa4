// Package scheduler is the optional in-process trigger source. It fires the
// same publish cycles and ingest runs as the cron endpoints.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
)

const defaultJobTimeout = 5 * time.Minute

// ErrUnknownJob is returned by Trigger for an unregistered name.
var ErrUnknownJob = errors.New("unknown job")

// Scheduler runs named jobs on cron schedules. A job still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	log     logger.Logger
	timeout time.Duration

	mu      sync.RWMutex
	jobs      map[string]func(context.Context) error
	schedules map[string]cron.Schedule

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped Scheduler. timeout bounds each job run.
func New(log logger.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  parser,
		log:     log,
		timeout: timeout,
		jobs:      make(map[string]func(context.Context) error),
		schedules: make(map[string]cron.Schedule),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add registers run under name. An empty schedule registers the job for
// Trigger only.
func (s *Scheduler) Add(name, schedule string, run func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	if schedule != "" {
		parsed, err := s.parser.Parse(schedule)
		if err != nil {
			return fmt.Errorf("parse schedule for %s: %w", name, err)
		}
		s.cron.Schedule(parsed, cron.FuncJob(func() {
			if runErr := s.run(s.ctx, name, run); runErr != nil {
				s.log.Error("Scheduled job failed", logger.String("job", name), logger.Error(runErr))
			}
		}))
		s.schedules[name] = parsed
	}

	s.jobs[name] = run
	s.log.Info("Job registered", logger.String("job", name), logger.String("schedule", schedule))
	return nil
}

// Trigger runs a registered job now on the caller's goroutine.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	run, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, name, run)
}

// Next reports when name fires after now. Trigger-only jobs report false.
func (s *Scheduler) Next(name string, now time.Time) (time.Time, bool) {
	s.mu.RLock()
	schedule, ok := s.schedules[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return schedule.Next(now), true
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", logger.Int("entries", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) run(ctx context.Context, name string, run func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	s.log.Debug("Job finished",
		logger.String("job", name),
		logger.Duration("duration", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	return err
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []any) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
