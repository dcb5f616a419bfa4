package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

// Outside InTx each call is its own transaction.

func (s *Store) CreateIdea(ctx context.Context, idea *domain.Idea) error {
	return s.run(ctx, func(t *tx) error { return t.CreateIdea(ctx, idea) })
}

func (s *Store) GetIdea(ctx context.Context, id uuid.UUID) (idea *domain.Idea, err error) {
	err = s.run(ctx, func(t *tx) error { idea, err = t.GetIdea(ctx, id); return err })
	return idea, err
}

func (s *Store) ListIdeas(ctx context.Context, statuses []domain.IdeaStatus) (ideas []domain.Idea, err error) {
	err = s.run(ctx, func(t *tx) error { ideas, err = t.ListIdeas(ctx, statuses); return err })
	return ideas, err
}

func (s *Store) UpdateIdeaStatus(ctx context.Context, id uuid.UUID, status domain.IdeaStatus) error {
	return s.run(ctx, func(t *tx) error { return t.UpdateIdeaStatus(ctx, id, status) })
}

func (s *Store) CreatePieces(ctx context.Context, pieces []*domain.ContentPiece) error {
	return s.run(ctx, func(t *tx) error { return t.CreatePieces(ctx, pieces) })
}

func (s *Store) GetPiece(ctx context.Context, id uuid.UUID) (p *domain.ContentPiece, err error) {
	err = s.run(ctx, func(t *tx) error { p, err = t.GetPiece(ctx, id); return err })
	return p, err
}

func (s *Store) ListPieces(ctx context.Context, f domain.PieceFilter) (ps []domain.ContentPiece, err error) {
	err = s.run(ctx, func(t *tx) error { ps, err = t.ListPieces(ctx, f); return err })
	return ps, err
}

func (s *Store) UpdatePieceContent(ctx context.Context, id uuid.UUID, content string, title *string) error {
	return s.run(ctx, func(t *tx) error { return t.UpdatePieceContent(ctx, id, content, title) })
}

func (s *Store) QueuedPieces(ctx context.Context, ct domain.ContentType) (ps []domain.ContentPiece, err error) {
	err = s.run(ctx, func(t *tx) error { ps, err = t.QueuedPieces(ctx, ct); return err })
	return ps, err
}

func (s *Store) MaxQueuePosition(ctx context.Context, ct domain.ContentType) (n int, err error) {
	err = s.run(ctx, func(t *tx) error { n, err = t.MaxQueuePosition(ctx, ct); return err })
	return n, err
}

func (s *Store) QueueHead(ctx context.Context, ct domain.ContentType) (p *domain.ContentPiece, err error) {
	err = s.run(ctx, func(t *tx) error { p, err = t.QueueHead(ctx, ct); return err })
	return p, err
}

func (s *Store) FirstFailedPiece(ctx context.Context, ct domain.ContentType) (p *domain.ContentPiece, err error) {
	err = s.run(ctx, func(t *tx) error { p, err = t.FirstFailedPiece(ctx, ct); return err })
	return p, err
}

func (s *Store) SetQueuePosition(ctx context.Context, id uuid.UUID, position int) error {
	return s.run(ctx, func(t *tx) error { return t.SetQueuePosition(ctx, id, position) })
}

func (s *Store) ClearQueuePosition(ctx context.Context, id uuid.UUID, status domain.PieceStatus) error {
	return s.run(ctx, func(t *tx) error { return t.ClearQueuePosition(ctx, id, status) })
}

func (s *Store) ShiftQueue(ctx context.Context, ct domain.ContentType, from, to, delta int) error {
	return s.run(ctx, func(t *tx) error { return t.ShiftQueue(ctx, ct, from, to, delta) })
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, externalID *string, at time.Time) error {
	return s.run(ctx, func(t *tx) error { return t.MarkPublished(ctx, id, externalID, at) })
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return s.run(ctx, func(t *tx) error { return t.MarkFailed(ctx, id, message) })
}

func (s *Store) BlogSlugExists(ctx context.Context, slug string) (ok bool, err error) {
	err = s.run(ctx, func(t *tx) error { ok, err = t.BlogSlugExists(ctx, slug); return err })
	return ok, err
}

func (s *Store) CreateBlogPost(ctx context.Context, post *domain.BlogPost) error {
	return s.run(ctx, func(t *tx) error { return t.CreateBlogPost(ctx, post) })
}

func (s *Store) ListBlogPosts(ctx context.Context, limit int) (posts []domain.BlogPost, err error) {
	err = s.run(ctx, func(t *tx) error { posts, err = t.ListBlogPosts(ctx, limit); return err })
	return posts, err
}

func (s *Store) GetBlogPostBySlug(ctx context.Context, slug string) (post *domain.BlogPost, err error) {
	err = s.run(ctx, func(t *tx) error { post, err = t.GetBlogPostBySlug(ctx, slug); return err })
	return post, err
}

func (s *Store) GetSetting(ctx context.Context, key string) (value string, found bool, err error) {
	err = s.run(ctx, func(t *tx) error { value, found, err = t.GetSetting(ctx, key); return err })
	return value, found, err
}

func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	return s.run(ctx, func(t *tx) error { return t.UpsertSetting(ctx, key, value) })
}

func (s *Store) PieceStats(ctx context.Context) (counts []domain.StatusCount, err error) {
	err = s.run(ctx, func(t *tx) error { counts, err = t.PieceStats(ctx); return err })
	return counts, err
}

func (s *Store) TableCounts(ctx context.Context) (counts []domain.TableCount, err error) {
	err = s.run(ctx, func(t *tx) error { counts, err = t.TableCounts(ctx); return err })
	return counts, err
}
