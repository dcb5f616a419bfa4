package scheduler

import (
	"context"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/ingest"
	"github.com/jonesrussell/content-studio/internal/publish"
)

// Job names.
const (
	JobIngest = "ingest"
)

// PublishJob names the publish job of t.
func PublishJob(t domain.ContentType) string { return "publish:" + string(t) }

// Publisher runs a publish cycle.
type Publisher interface {
	Run(ctx context.Context, t domain.ContentType) (*publish.Result, error)
}

// Ingester runs an email ingest.
type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

// Register adds the publish jobs for every content type and, when ingester
// is non-nil, the ingest job.
func Register(s *Scheduler, cfg config.SchedulerConfig, pub Publisher, ingester Ingester, log logger.Logger) error {
	schedules := map[domain.ContentType]string{
		domain.ContentTypeLinkedIn: cfg.LinkedInSchedule,
		domain.ContentTypeBlog:     cfg.BlogSchedule,
	}
	for _, t := range domain.ContentTypes {
		if err := s.Add(PublishJob(t), schedules[t], publishJob(pub, t, log)); err != nil {
			return err
		}
	}

	if ingester == nil {
		log.Info("Email ingest not configured, skipping ingest job")
		return nil
	}
	return s.Add(JobIngest, cfg.IngestSchedule, func(ctx context.Context) error {
		_, err := ingester.Run(ctx)
		return err
	})
}

func publishJob(pub Publisher, t domain.ContentType, log logger.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := pub.Run(ctx, t)
		if res != nil {
			log.Info("Scheduled publish cycle",
				logger.String("type", string(t)),
				logger.String("outcome", string(res.Outcome)),
			)
		}
		return err
	}
}
