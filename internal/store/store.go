// Package store declares the record store used by the queue, publish and
// drafting services. Implementations live in internal/database (Postgres)
// and internal/store/memstore (tests).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

// Lookups of a single record return an error matching domain.ErrNotFound when
// the record is absent.

// IdeaStore persists ideas.
type IdeaStore interface {
	CreateIdea(ctx context.Context, idea *domain.Idea) error
	GetIdea(ctx context.Context, id uuid.UUID) (*domain.Idea, error)
	// ListIdeas returns ideas in any of statuses, newest first.
	ListIdeas(ctx context.Context, statuses []domain.IdeaStatus) ([]domain.Idea, error)
	UpdateIdeaStatus(ctx context.Context, id uuid.UUID, status domain.IdeaStatus) error
}

// PieceStore persists content pieces outside of queue bookkeeping.
type PieceStore interface {
	CreatePieces(ctx context.Context, pieces []*domain.ContentPiece) error
	GetPiece(ctx context.Context, id uuid.UUID) (*domain.ContentPiece, error)
	ListPieces(ctx context.Context, filter domain.PieceFilter) ([]domain.ContentPiece, error)
	// UpdatePieceContent replaces content, and title when title is non-nil.
	UpdatePieceContent(ctx context.Context, id uuid.UUID, content string, title *string) error
}

// QueueStore holds the position primitives. Callers are expected to hold the
// per-type queue lease while using them.
type QueueStore interface {
	// QueuedPieces returns queued pieces of t ordered by position.
	QueuedPieces(ctx context.Context, t domain.ContentType) ([]domain.ContentPiece, error)
	// MaxQueuePosition returns 0 for an empty queue.
	MaxQueuePosition(ctx context.Context, t domain.ContentType) (int, error)
	QueueHead(ctx context.Context, t domain.ContentType) (*domain.ContentPiece, error)
	FirstFailedPiece(ctx context.Context, t domain.ContentType) (*domain.ContentPiece, error)

	// SetQueuePosition sets status queued, the position, and clears error_message.
	SetQueuePosition(ctx context.Context, id uuid.UUID, position int) error
	// ClearQueuePosition nulls the position and sets status.
	ClearQueuePosition(ctx context.Context, id uuid.UUID, status domain.PieceStatus) error
	// ShiftQueue adds delta to every queued position of t in [from, to].
	// to == 0 means unbounded.
	ShiftQueue(ctx context.Context, t domain.ContentType, from, to, delta int) error

	MarkPublished(ctx context.Context, id uuid.UUID, externalID *string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// BlogStore persists published blog artifacts.
type BlogStore interface {
	BlogSlugExists(ctx context.Context, slug string) (bool, error)
	CreateBlogPost(ctx context.Context, post *domain.BlogPost) error
	ListBlogPosts(ctx context.Context, limit int) ([]domain.BlogPost, error)
	GetBlogPostBySlug(ctx context.Context, slug string) (*domain.BlogPost, error)
}

// SettingStore is the flat key/value table. It is never cached.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (value string, found bool, err error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// ReportStore backs the stats and schema endpoints.
type ReportStore interface {
	PieceStats(ctx context.Context) ([]domain.StatusCount, error)
	TableCounts(ctx context.Context) ([]domain.TableCount, error)
}

// Tx is everything available inside a transaction.
type Tx interface {
	IdeaStore
	PieceStore
	QueueStore
	BlogStore
	SettingStore
	ReportStore
}

// Store runs single statements directly and multi-statement units in InTx.
type Store interface {
	Tx
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
