package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/content-studio/internal/domain"
)

// QueuedPieces returns the queue for t ordered by position. Rows are locked
// so a concurrent transaction that bypassed the lease blocks instead of
// interleaving.
func (r *Repository) QueuedPieces(ctx context.Context, t domain.ContentType) ([]domain.ContentPiece, error) {
	query := `
		SELECT ` + pieceSelectList + `
		FROM content_pieces
		WHERE type = $1 AND status = 'queued'
		ORDER BY queue_position ASC
		FOR UPDATE`

	pieces := make([]domain.ContentPiece, 0)
	if err := sqlx.SelectContext(ctx, r.q, &pieces, query, t); err != nil {
		return nil, fmt.Errorf("queued pieces: %w", err)
	}
	return pieces, nil
}

func (r *Repository) MaxQueuePosition(ctx context.Context, t domain.ContentType) (int, error) {
	var maxPos int
	query := `
		SELECT COALESCE(MAX(queue_position), 0)
		FROM content_pieces
		WHERE type = $1 AND status = 'queued'`
	if err := sqlx.GetContext(ctx, r.q, &maxPos, query, t); err != nil {
		return 0, fmt.Errorf("max queue position: %w", err)
	}
	return maxPos, nil
}

func (r *Repository) QueueHead(ctx context.Context, t domain.ContentType) (*domain.ContentPiece, error) {
	query := `
		SELECT ` + pieceSelectList + `
		FROM content_pieces
		WHERE type = $1 AND status = 'queued' AND queue_position = 1
		FOR UPDATE`
	return r.getOnePiece(ctx, "queue head", query, t)
}

func (r *Repository) FirstFailedPiece(ctx context.Context, t domain.ContentType) (*domain.ContentPiece, error) {
	query := `
		SELECT ` + pieceSelectList + `
		FROM content_pieces
		WHERE type = $1 AND status = 'failed'
		ORDER BY updated_at ASC
		LIMIT 1`
	return r.getOnePiece(ctx, "failed piece", query, t)
}

func (r *Repository) getOnePiece(ctx context.Context, resource, query string, args ...any) (*domain.ContentPiece, error) {
	var p domain.ContentPiece
	if err := sqlx.GetContext(ctx, r.q, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: resource}
		}
		return nil, fmt.Errorf("get %s: %w", resource, err)
	}
	return &p, nil
}

func (r *Repository) SetQueuePosition(ctx context.Context, id uuid.UUID, position int) error {
	query := `
		UPDATE content_pieces
		SET status = 'queued',
		    queue_position = $2,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1`
	return r.pieceUpdate(ctx, "set queue position", id, query, id, position)
}

func (r *Repository) ClearQueuePosition(ctx context.Context, id uuid.UUID, status domain.PieceStatus) error {
	query := `
		UPDATE content_pieces
		SET status = $2,
		    queue_position = NULL,
		    updated_at = NOW()
		WHERE id = $1`
	return r.pieceUpdate(ctx, "clear queue position", id, query, id, status)
}

// ShiftQueue moves a contiguous range in one statement; to == 0 is open-ended.
func (r *Repository) ShiftQueue(ctx context.Context, t domain.ContentType, from, to, delta int) error {
	query := `
		UPDATE content_pieces
		SET queue_position = queue_position + $4,
		    updated_at = NOW()
		WHERE type = $1
		  AND status = 'queued'
		  AND queue_position >= $2
		  AND ($3 = 0 OR queue_position <= $3)`
	if _, err := r.q.ExecContext(ctx, query, t, from, to, delta); err != nil {
		return fmt.Errorf("shift queue: %w", err)
	}
	return nil
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, externalID *string, at time.Time) error {
	query := `
		UPDATE content_pieces
		SET status = 'published',
		    queue_position = NULL,
		    external_id = $2,
		    published_at = $3,
		    updated_at = NOW()
		WHERE id = $1`
	return r.pieceUpdate(ctx, "mark published", id, query, id, externalID, at)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE content_pieces
		SET status = 'failed',
		    queue_position = NULL,
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $1`
	return r.pieceUpdate(ctx, "mark failed", id, query, id, message)
}

func (r *Repository) pieceUpdate(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	if err := r.execExpectOneRow(ctx, "content piece", id.String(), query, args...); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
