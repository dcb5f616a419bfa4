package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/channels"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/store"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

// Service holds one Cycle per content type.
type Service struct {
	cycles map[domain.ContentType]*Cycle
}

// NewService builds a cycle for every type in registry. Every known content
// type needs a channel.
func NewService(
	s store.Store,
	locker lock.Locker,
	registry channels.Registry,
	timeout time.Duration,
	tp *telemetry.Provider,
	log logger.Logger,
) (*Service, error) {
	cycles := make(map[domain.ContentType]*Cycle, len(domain.ContentTypes))
	for _, t := range domain.ContentTypes {
		channel, err := registry.For(t)
		if err != nil {
			return nil, err
		}
		cycles[t] = NewCycle(t, s, locker, channel, timeout, tp, log)
	}
	return &Service{cycles: cycles}, nil
}

// Run executes the cycle for t.
func (s *Service) Run(ctx context.Context, t domain.ContentType) (*Result, error) {
	cycle, ok := s.cycles[t]
	if !ok {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown content type %q", t)}
	}
	return cycle.Run(ctx)
}
