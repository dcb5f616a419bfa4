// Package memstore is an in-memory store.Store. Transactions run against a
// copy of the data that replaces the committed data only on success.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is safe for concurrent use. All operations, including whole
// transactions, are serialized.
type Store struct {
	mu     sync.Mutex
	data   *data
	now    func() time.Time
	writes int
	faults map[string]error
}

type data struct {
	ideas    map[uuid.UUID]domain.Idea
	pieces   map[uuid.UUID]domain.ContentPiece
	posts    map[uuid.UUID]domain.BlogPost
	settings map[string]domain.Setting
	writes   int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data: &data{
			ideas:    make(map[uuid.UUID]domain.Idea),
			pieces:   make(map[uuid.UUID]domain.ContentPiece),
			posts:    make(map[uuid.UUID]domain.BlogPost),
			settings: make(map[string]domain.Setting),
		},
		now:    time.Now,
		faults: make(map[string]error),
	}
}

// Writes counts committed mutating calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// FailOn makes every later call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (d *data) clone() *data {
	c := &data{
		ideas:    make(map[uuid.UUID]domain.Idea, len(d.ideas)),
		pieces:   make(map[uuid.UUID]domain.ContentPiece, len(d.pieces)),
		posts:    make(map[uuid.UUID]domain.BlogPost, len(d.posts)),
		settings: make(map[string]domain.Setting, len(d.settings)),
	}
	for k, v := range d.ideas {
		c.ideas[k] = v
	}
	for k, v := range d.pieces {
		c.pieces[k] = v
	}
	for k, v := range d.posts {
		c.posts[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	return c
}

// InTx runs fn against a snapshot and commits it when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	t := &tx{data: snapshot, now: s.now, faults: s.faults}
	if err := fn(t); err != nil {
		return err
	}

	s.data = snapshot
	s.writes += snapshot.writes
	snapshot.writes = 0
	return nil
}

// run executes a single statement as its own transaction.
func (s *Store) run(ctx context.Context, fn func(t *tx) error) error {
	return s.InTx(ctx, func(t store.Tx) error { return fn(t.(*tx)) })
}

type tx struct {
	data   *data
	now    func() time.Time
	faults map[string]error
}

func (t *tx) fault(op string) error {
	return t.faults[op]
}

func (t *tx) wrote() { t.data.writes++ }

func notFound(resource string, id uuid.UUID) error {
	return &domain.NotFoundError{Resource: resource, ID: id.String()}
}

// Ideas

func (t *tx) CreateIdea(_ context.Context, idea *domain.Idea) error {
	if err := t.fault("CreateIdea"); err != nil {
		return err
	}
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	if _, exists := t.data.ideas[idea.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = t.now()
	}
	t.data.ideas[idea.ID] = *idea
	t.wrote()
	return nil
}

func (t *tx) GetIdea(_ context.Context, id uuid.UUID) (*domain.Idea, error) {
	if err := t.fault("GetIdea"); err != nil {
		return nil, err
	}
	idea, ok := t.data.ideas[id]
	if !ok {
		return nil, notFound("idea", id)
	}
	return &idea, nil
}

func (t *tx) ListIdeas(_ context.Context, statuses []domain.IdeaStatus) ([]domain.Idea, error) {
	want := make(map[domain.IdeaStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := make([]domain.Idea, 0, len(t.data.ideas))
	for _, idea := range t.data.ideas {
		if len(want) == 0 || want[idea.Status] {
			out = append(out, idea)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) UpdateIdeaStatus(_ context.Context, id uuid.UUID, status domain.IdeaStatus) error {
	if err := t.fault("UpdateIdeaStatus"); err != nil {
		return err
	}
	idea, ok := t.data.ideas[id]
	if !ok {
		return notFound("idea", id)
	}
	idea.Status = status
	t.data.ideas[id] = idea
	t.wrote()
	return nil
}

// Pieces

func (t *tx) CreatePieces(_ context.Context, pieces []*domain.ContentPiece) error {
	if err := t.fault("CreatePieces"); err != nil {
		return err
	}
	now := t.now()
	for _, p := range pieces {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, exists := t.data.pieces[p.ID]; exists {
			return domain.ErrAlreadyExists
		}
		if p.Status == "" {
			p.Status = domain.PieceStatusDraft
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		t.data.pieces[p.ID] = *p
	}
	t.wrote()
	return nil
}

func (t *tx) GetPiece(_ context.Context, id uuid.UUID) (*domain.ContentPiece, error) {
	if err := t.fault("GetPiece"); err != nil {
		return nil, err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return nil, notFound("content piece", id)
	}
	return &p, nil
}

func (t *tx) ListPieces(_ context.Context, f domain.PieceFilter) ([]domain.ContentPiece, error) {
	out := make([]domain.ContentPiece, 0)
	for _, p := range t.data.pieces {
		if f.IdeaID != nil && p.IdeaID != *f.IdeaID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) UpdatePieceContent(_ context.Context, id uuid.UUID, content string, title *string) error {
	if err := t.fault("UpdatePieceContent"); err != nil {
		return err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return notFound("content piece", id)
	}
	p.Content = content
	if title != nil {
		p.Title = title
	}
	p.UpdatedAt = t.now()
	t.data.pieces[id] = p
	t.wrote()
	return nil
}

// Queue

func (t *tx) QueuedPieces(_ context.Context, ct domain.ContentType) ([]domain.ContentPiece, error) {
	if err := t.fault("QueuedPieces"); err != nil {
		return nil, err
	}
	out := make([]domain.ContentPiece, 0)
	for _, p := range t.data.pieces {
		if p.Type == ct && p.Status == domain.PieceStatusQueued && p.QueuePosition != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].QueuePosition < *out[j].QueuePosition })
	return out, nil
}

func (t *tx) MaxQueuePosition(ctx context.Context, ct domain.ContentType) (int, error) {
	if err := t.fault("MaxQueuePosition"); err != nil {
		return 0, err
	}
	queued, err := t.QueuedPieces(ctx, ct)
	if err != nil || len(queued) == 0 {
		return 0, err
	}
	return *queued[len(queued)-1].QueuePosition, nil
}

func (t *tx) QueueHead(_ context.Context, ct domain.ContentType) (*domain.ContentPiece, error) {
	if err := t.fault("QueueHead"); err != nil {
		return nil, err
	}
	for _, p := range t.data.pieces {
		if p.Type == ct && p.Status == domain.PieceStatusQueued && p.Position() == 1 {
			return &p, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "queue head"}
}

func (t *tx) FirstFailedPiece(_ context.Context, ct domain.ContentType) (*domain.ContentPiece, error) {
	if err := t.fault("FirstFailedPiece"); err != nil {
		return nil, err
	}
	var found *domain.ContentPiece
	for _, p := range t.data.pieces {
		if p.Type != ct || p.Status != domain.PieceStatusFailed {
			continue
		}
		if found == nil || p.UpdatedAt.Before(found.UpdatedAt) {
			found = &p
		}
	}
	if found == nil {
		return nil, &domain.NotFoundError{Resource: "failed piece"}
	}
	return found, nil
}

func (t *tx) SetQueuePosition(_ context.Context, id uuid.UUID, position int) error {
	if err := t.fault("SetQueuePosition"); err != nil {
		return err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return notFound("content piece", id)
	}
	pos := position
	p.QueuePosition = &pos
	p.Status = domain.PieceStatusQueued
	p.ErrorMessage = nil
	p.UpdatedAt = t.now()
	t.data.pieces[id] = p
	t.wrote()
	return nil
}

func (t *tx) ClearQueuePosition(_ context.Context, id uuid.UUID, status domain.PieceStatus) error {
	if err := t.fault("ClearQueuePosition"); err != nil {
		return err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return notFound("content piece", id)
	}
	p.QueuePosition = nil
	p.Status = status
	p.UpdatedAt = t.now()
	t.data.pieces[id] = p
	t.wrote()
	return nil
}

func (t *tx) ShiftQueue(_ context.Context, ct domain.ContentType, from, to, delta int) error {
	if err := t.fault("ShiftQueue"); err != nil {
		return err
	}
	now := t.now()
	for id, p := range t.data.pieces {
		if p.Type != ct || p.Status != domain.PieceStatusQueued || p.QueuePosition == nil {
			continue
		}
		pos := *p.QueuePosition
		if pos < from || (to > 0 && pos > to) {
			continue
		}
		shifted := pos + delta
		p.QueuePosition = &shifted
		p.UpdatedAt = now
		t.data.pieces[id] = p
	}
	t.wrote()
	return nil
}

func (t *tx) MarkPublished(_ context.Context, id uuid.UUID, externalID *string, at time.Time) error {
	if err := t.fault("MarkPublished"); err != nil {
		return err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return notFound("content piece", id)
	}
	published := at
	p.Status = domain.PieceStatusPublished
	p.QueuePosition = nil
	p.ExternalID = externalID
	p.PublishedAt = &published
	p.UpdatedAt = t.now()
	t.data.pieces[id] = p
	t.wrote()
	return nil
}

func (t *tx) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	if err := t.fault("MarkFailed"); err != nil {
		return err
	}
	p, ok := t.data.pieces[id]
	if !ok {
		return notFound("content piece", id)
	}
	msg := message
	p.Status = domain.PieceStatusFailed
	p.QueuePosition = nil
	p.ErrorMessage = &msg
	p.UpdatedAt = t.now()
	t.data.pieces[id] = p
	t.wrote()
	return nil
}

// Blog posts

func (t *tx) BlogSlugExists(_ context.Context, slug string) (bool, error) {
	if err := t.fault("BlogSlugExists"); err != nil {
		return false, err
	}
	for _, post := range t.data.posts {
		if post.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CreateBlogPost(ctx context.Context, post *domain.BlogPost) error {
	if err := t.fault("CreateBlogPost"); err != nil {
		return err
	}
	exists, _ := t.BlogSlugExists(ctx, post.Slug)
	if exists {
		return domain.ErrAlreadyExists
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = t.now()
	}
	t.data.posts[post.ID] = *post
	t.wrote()
	return nil
}

func (t *tx) ListBlogPosts(_ context.Context, limit int) ([]domain.BlogPost, error) {
	out := make([]domain.BlogPost, 0, len(t.data.posts))
	for _, post := range t.data.posts {
		if post.Published {
			out = append(out, post)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) GetBlogPostBySlug(_ context.Context, slug string) (*domain.BlogPost, error) {
	for _, post := range t.data.posts {
		if post.Slug == slug && post.Published {
			return &post, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "blog post", ID: slug}
}

// Settings

func (t *tx) GetSetting(_ context.Context, key string) (string, bool, error) {
	if err := t.fault("GetSetting"); err != nil {
		return "", false, err
	}
	s, ok := t.data.settings[key]
	return s.Value, ok, nil
}

func (t *tx) UpsertSetting(_ context.Context, key, value string) error {
	if err := t.fault("UpsertSetting"); err != nil {
		return err
	}
	t.data.settings[key] = domain.Setting{Key: key, Value: value, UpdatedAt: t.now()}
	t.wrote()
	return nil
}

// Reports

func (t *tx) PieceStats(_ context.Context) ([]domain.StatusCount, error) {
	counts := make(map[domain.StatusCount]int)
	for _, p := range t.data.pieces {
		counts[domain.StatusCount{Type: p.Type, Status: p.Status}]++
	}
	out := make([]domain.StatusCount, 0, len(counts))
	for k, n := range counts {
		k.Count = n
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (t *tx) TableCounts(_ context.Context) ([]domain.TableCount, error) {
	return []domain.TableCount{
		{Table: "blog_posts", Rows: int64(len(t.data.posts))},
		{Table: "content_pieces", Rows: int64(len(t.data.pieces))},
		{Table: "ideas", Rows: int64(len(t.data.ideas))},
		{Table: "settings", Rows: int64(len(t.data.settings))},
	}, nil
}
