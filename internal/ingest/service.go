package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

const lockKey = "ingest:email"

// IdeaCreator stores an idea.
type IdeaCreator interface {
	CreateIdea(ctx context.Context, content string, source *string) (*domain.Idea, error)
}

// Result summarizes one ingest run.
type Result struct {
	Processed int  `json:"processed"`
	Created   int  `json:"created"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	Busy      bool `json:"busy,omitempty"`
}

// Service polls a MailSource and stores each email as a new idea.
type Service struct {
	source    MailSource
	ideas     IdeaCreator
	locker    lock.Locker
	telemetry *telemetry.Provider
	log       logger.Logger
}

func NewService(source MailSource, ideas IdeaCreator, locker lock.Locker, tp *telemetry.Provider, log logger.Logger) *Service {
	return &Service{source: source, ideas: ideas, locker: locker, telemetry: tp, log: log}
}

// Run ingests unread idea emails. An email is marked read only after its
// idea is stored; emails without a text body stay unread.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if s == nil || s.source == nil {
		return nil, ErrNotConfigured
	}

	lease, err := s.locker.TryAcquire(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if lease == nil {
		return &Result{Busy: true}, nil
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.log.Warn("Failed to release ingest lock", logger.Error(releaseErr))
		}
	}()

	messages, err := s.source.ListUnread(ctx)
	if err != nil {
		s.telemetry.RecordIngest(0, 1)
		return nil, &domain.ExternalServiceError{Service: "mailbox", Err: err}
	}

	res := &Result{Processed: len(messages)}
	for _, msg := range messages {
		s.ingest(ctx, msg, res)
	}
	s.telemetry.RecordIngest(res.Created, res.Failed)

	s.log.Info("Email ingest finished",
		logger.Int("processed", res.Processed),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) ingest(ctx context.Context, msg Message, res *Result) {
	content := strings.TrimSpace(msg.Body)
	if content == "" {
		res.Skipped++
		s.log.Debug("Skipping email without text body", logger.String("message_id", msg.ID))
		return
	}

	var source *string
	if msg.From != "" {
		source = &msg.From
	}
	idea, err := s.ideas.CreateIdea(ctx, content, source)
	if err != nil {
		res.Failed++
		s.log.Error("Failed to store idea from email",
			logger.String("message_id", msg.ID),
			logger.Error(err),
		)
		return
	}

	if err = s.source.MarkRead(ctx, msg.ID); err != nil {
		// The idea is stored; the email may be ingested again next run.
		s.log.Warn("Failed to mark email read",
			logger.String("message_id", msg.ID),
			logger.String("idea_id", idea.ID.String()),
			logger.Error(err),
		)
	}
	res.Created++
}
