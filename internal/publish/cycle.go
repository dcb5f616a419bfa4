// Package publish runs the per-type publish cycle: it takes the head of a
// queue, hands it to the type's channel and records the outcome.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/channels"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/store"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

const defaultTimeout = 60 * time.Second

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeBusy                Outcome = "busy"
	OutcomeDisabled            Outcome = "disabled"
	OutcomeSkippedFailedExists Outcome = "skipped_failed_exists"
	OutcomeEmpty               Outcome = "empty"
	OutcomePublished           Outcome = "published"
	OutcomeFailed              Outcome = "failed"
)

// Result reports one cycle. PieceID is set for published, failed and
// skipped_failed_exists.
type Result struct {
	Type       domain.ContentType `json:"type"`
	Outcome    Outcome            `json:"outcome"`
	PieceID    *string            `json:"piece_id,omitempty"`
	ExternalID *string            `json:"external_id,omitempty"`
	Slug       string             `json:"slug,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// Cycle publishes the queue head of one content type.
type Cycle struct {
	contentType domain.ContentType
	store       store.Store
	locker      lock.Locker
	channel     channels.Publisher
	timeout     time.Duration
	telemetry   *telemetry.Provider
	log         logger.Logger
	now         func() time.Time
}

// NewCycle wires a Cycle. timeout bounds the channel call.
func NewCycle(
	contentType domain.ContentType,
	s store.Store,
	locker lock.Locker,
	channel channels.Publisher,
	timeout time.Duration,
	tp *telemetry.Provider,
	log logger.Logger,
) *Cycle {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Cycle{
		contentType: contentType,
		store:       s,
		locker:      locker,
		channel:     channel,
		timeout:     timeout,
		telemetry:   tp,
		log:         log.With(logger.String("type", string(contentType))),
		now:         time.Now,
	}
}

// Run executes one cycle. A failed publish returns both the failed Result
// and an ExternalServiceError. A persistence error after the head is known
// parks the head as failed and returns the PersistenceError.
func (c *Cycle) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	ctx, span := c.telemetry.StartSpan(ctx, "publish.cycle", attribute.String("type", string(c.contentType)))
	defer func() {
		outcome := "error"
		if res != nil {
			outcome = string(res.Outcome)
		}
		c.telemetry.RecordCycle(ctx, string(c.contentType), outcome, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	publishLease, err := c.locker.TryAcquire(ctx, lock.PublishKey(string(c.contentType)))
	if err != nil {
		return nil, fmt.Errorf("acquire publish lock: %w", err)
	}
	if publishLease == nil {
		c.log.Info("Publish cycle already running")
		return c.result(OutcomeBusy, "publish cycle already running"), nil
	}
	defer c.release(ctx, publishLease)

	enabled, err := c.enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		c.log.Info("Posting disabled, skipping cycle")
		return c.result(OutcomeDisabled, "posting is disabled"), nil
	}

	failed, err := c.store.FirstFailedPiece(ctx, c.contentType)
	switch {
	case err == nil:
		c.log.Warn("Failed piece blocks the queue", logger.String("piece_id", failed.ID.String()))
		res = c.result(OutcomeSkippedFailedExists, "a failed piece must be retried or removed first")
		res.PieceID = idString(failed)
		return res, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, domain.Persistence("find failed piece", err)
	}

	queueLease, err := c.locker.Acquire(ctx, lock.QueueKey(string(c.contentType)))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, &domain.ConflictError{Message: fmt.Sprintf("%s queue is busy", c.contentType)}
		}
		return nil, fmt.Errorf("acquire queue lock: %w", err)
	}
	defer c.release(ctx, queueLease)

	head, err := c.store.QueueHead(ctx, c.contentType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.telemetry.SetQueueDepth(string(c.contentType), 0)
			return c.result(OutcomeEmpty, "queue is empty"), nil
		}
		return nil, domain.Persistence("fetch queue head", err)
	}

	item := channels.Item{
		PieceID: head.ID,
		Type:    head.Type,
		Title:   head.TitleOrEmpty(),
		Content: head.Content,
	}
	if c.contentType == domain.ContentTypeBlog {
		item.Slug, err = UniqueSlug(ctx, Slugify(item.Title), c.store.BlogSlugExists)
		if err != nil {
			slugErr := domain.Persistence("check blog slug", err)
			return c.parkAfterPersistenceError(context.WithoutCancel(ctx), head, slugErr.Error(), slugErr)
		}
	}

	receipt, publishErr := c.publish(ctx, item)

	// The channel call has already happened, so the outcome is recorded even
	// when the caller has gone away.
	recordCtx := context.WithoutCancel(ctx)
	if publishErr != nil {
		return c.markFailed(recordCtx, head, item, publishErr)
	}
	return c.advance(recordCtx, head, item, receipt)
}

func (c *Cycle) publish(ctx context.Context, item channels.Item) (*channels.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.telemetry.StartSpan(ctx, "publish.channel",
		attribute.String("type", string(item.Type)),
		attribute.String("piece_id", item.PieceID.String()),
	)
	receipt, err := c.channel.Publish(ctx, item)
	if err == nil && receipt == nil {
		err = errors.New("channel returned no receipt")
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("publish timed out after %s: %w", c.timeout, err)
	}
	telemetry.EndSpan(span, err)
	return receipt, err
}

// advance records a successful publish and moves the queue up.
func (c *Cycle) advance(ctx context.Context, head *domain.ContentPiece, item channels.Item, receipt *channels.Receipt) (*Result, error) {
	publishedAt := c.now().UTC()
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		if receipt.Post != nil {
			if err := tx.CreateBlogPost(ctx, receipt.Post); err != nil {
				return domain.Persistence("create blog post", err)
			}
			publishedAt = receipt.Post.PublishedAt
		}
		if err := tx.MarkPublished(ctx, head.ID, receipt.ExternalID, publishedAt); err != nil {
			return domain.Persistence("mark published", err)
		}
		return c.closeHead(ctx, tx)
	})
	if err != nil {
		recordErr := asPersistence("record publish", err)
		message := fmt.Sprintf("published to %s channel but recording failed, the external post may already exist", c.contentType)
		if receipt.ExternalID != nil {
			message += " (external id " + *receipt.ExternalID + ")"
		}
		return c.parkAfterPersistenceError(ctx, head, message+": "+recordErr.Error(), recordErr)
	}

	c.refreshDepth(ctx)
	c.log.Info("Published content piece",
		logger.String("piece_id", head.ID.String()),
		logger.String("slug", item.Slug),
	)

	res := c.result(OutcomePublished, "")
	res.PieceID = idString(head)
	res.ExternalID = receipt.ExternalID
	res.Slug = item.Slug
	return res, nil
}

// markFailed parks the head as failed, which blocks later cycles until an
// operator retries or removes it.
func (c *Cycle) markFailed(ctx context.Context, head *domain.ContentPiece, item channels.Item, publishErr error) (*Result, error) {
	message := publishErr.Error()
	if err := c.park(ctx, head, message); err != nil {
		c.log.Error("Failed to record publish failure",
			logger.String("piece_id", head.ID.String()),
			logger.Error(err),
		)
		return nil, asPersistence("record publish failure", err)
	}

	c.refreshDepth(ctx)
	c.log.Warn("Publish failed",
		logger.String("piece_id", head.ID.String()),
		logger.String("slug", item.Slug),
		logger.Error(publishErr),
	)

	res := c.result(OutcomeFailed, message)
	res.PieceID = idString(head)
	return res, &domain.ExternalServiceError{Service: string(c.contentType) + " channel", Err: publishErr}
}

// parkAfterPersistenceError marks an identified head failed after cause
// stopped the cycle, so the next trigger cannot publish it again. cause is
// returned whether or not the piece could be parked.
func (c *Cycle) parkAfterPersistenceError(ctx context.Context, head *domain.ContentPiece, message string, cause error) (*Result, error) {
	c.log.Error("Publish cycle hit a persistence error",
		logger.String("piece_id", head.ID.String()),
		logger.Error(cause),
	)
	if err := c.park(ctx, head, message); err != nil {
		c.log.Error("Failed to park queue head",
			logger.String("piece_id", head.ID.String()),
			logger.Error(err),
		)
		return nil, cause
	}

	c.refreshDepth(ctx)
	res := c.result(OutcomeFailed, message)
	res.PieceID = idString(head)
	return res, cause
}

// park marks head failed and closes the gap it leaves.
func (c *Cycle) park(ctx context.Context, head *domain.ContentPiece, message string) error {
	return c.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.MarkFailed(ctx, head.ID, message); err != nil {
			return domain.Persistence("mark failed", err)
		}
		return c.closeHead(ctx, tx)
	})
}

func (c *Cycle) closeHead(ctx context.Context, tx store.Tx) error {
	if err := queue.CloseGap(ctx, tx, c.contentType, 1); err != nil {
		return err
	}
	return queue.VerifyDense(ctx, tx, c.contentType)
}

// enabled reads the posting switch. A missing row means disabled.
func (c *Cycle) enabled(ctx context.Context) (bool, error) {
	value, found, err := c.store.GetSetting(ctx, c.contentType.SettingKey())
	if err != nil {
		return false, domain.Persistence("read posting setting", err)
	}
	return found && value == "true", nil
}

func (c *Cycle) refreshDepth(ctx context.Context) {
	depth, err := c.store.MaxQueuePosition(ctx, c.contentType)
	if err != nil {
		c.log.Warn("Failed to read queue depth", logger.Error(err))
		return
	}
	c.telemetry.SetQueueDepth(string(c.contentType), depth)
}

func (c *Cycle) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn("Failed to release lock", logger.Error(err))
	}
}

func (c *Cycle) result(outcome Outcome, message string) *Result {
	return &Result{Type: c.contentType, Outcome: outcome, Message: message}
}

func idString(p *domain.ContentPiece) *string {
	id := p.ID.String()
	return &id
}

// asPersistence reports any failure to record an outcome as a PersistenceError.
func asPersistence(op string, err error) error {
	var pErr *domain.PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
