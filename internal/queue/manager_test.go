package queue_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/store"
	"github.com/jonesrussell/content-studio/internal/store/memstore"
)

type fixture struct {
	mgr   *queue.Manager
	store *memstore.Store
	idea  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memstore.New()
	idea := &domain.Idea{Content: "queues are lists", Status: domain.IdeaStatusDrafted}
	require.NoError(t, s.CreateIdea(context.Background(), idea))

	return &fixture{
		mgr:   queue.NewManager(s, lock.NewLocal(time.Second), logger.NewNop()),
		store: s,
		idea:  idea.ID,
	}
}

func (f *fixture) piece(t *testing.T, ct domain.ContentType, status domain.PieceStatus) uuid.UUID {
	t.Helper()

	p := &domain.ContentPiece{IdeaID: f.idea, Type: ct, Content: "body", Status: status}
	require.NoError(t, f.store.CreatePieces(context.Background(), []*domain.ContentPiece{p}))
	return p.ID
}

// queued creates and queues n pieces of ct, returning them in queue order.
func (f *fixture) queued(t *testing.T, ct domain.ContentType, n int) []uuid.UUID {
	t.Helper()

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.piece(t, ct, domain.PieceStatusDraft)
		_, err := f.mgr.Insert(context.Background(), ids[i])
		require.NoError(t, err)
	}
	return ids
}

func (f *fixture) order(t *testing.T, ct domain.ContentType) []uuid.UUID {
	t.Helper()

	pieces, err := f.mgr.List(context.Background(), ct)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(pieces))
	for i, p := range pieces {
		ids[i] = p.ID
	}
	return ids
}

func assertDense(t *testing.T, s store.Store, ct domain.ContentType) {
	t.Helper()

	pieces, err := s.QueuedPieces(context.Background(), ct)
	require.NoError(t, err)
	for i, p := range pieces {
		require.NotNil(t, p.QueuePosition, "queued piece without position")
		assert.Equal(t, i+1, *p.QueuePosition, "%s queue position %d", ct, i)
	}

	all, err := s.ListPieces(context.Background(), domain.PieceFilter{Type: ct})
	require.NoError(t, err)
	for _, p := range all {
		assert.Equal(t, p.Status == domain.PieceStatusQueued, p.QueuePosition != nil,
			"piece %s status %s position %v", p.ID, p.Status, p.QueuePosition)
	}
}

func TestInsert_AppendsAtTail(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 3)

	assert.Equal(t, ids, f.order(t, domain.ContentTypeBlog))

	p, err := f.store.GetPiece(context.Background(), ids[2])
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusQueued, p.Status)
	assert.Equal(t, 3, p.Position())
}

func TestInsert_Errors(t *testing.T) {
	t.Helper()
	runInsertErrorTests(t)
}

func runInsertErrorTests(t *testing.T) {
	t.Helper()

	f := newFixture(t)
	queuedID := f.queued(t, domain.ContentTypeLinkedIn, 1)[0]
	publishedID := f.piece(t, domain.ContentTypeLinkedIn, domain.PieceStatusPublished)

	testCases := []struct {
		name    string
		id      uuid.UUID
		checkFn func(error) bool
	}{
		{
			name:    "missing piece is not found",
			id:      uuid.New(),
			checkFn: func(err error) bool { return errors.Is(err, domain.ErrNotFound) },
		},
		{
			name: "already queued is a conflict",
			id:   queuedID,
			checkFn: func(err error) bool {
				var c *domain.ConflictError
				return errors.As(err, &c)
			},
		},
		{
			name: "published is a validation error",
			id:   publishedID,
			checkFn: func(err error) bool {
				var v *domain.ValidationError
				return errors.As(err, &v)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.store.Writes()

			_, err := f.mgr.Insert(context.Background(), tc.id)
			require.Error(t, err)
			assert.True(t, tc.checkFn(err), "unexpected error %v", err)
			assert.Equal(t, before, f.store.Writes(), "failed insert must not write")
		})
	}
}

func TestInsertBatch_ConsecutivePerType(t *testing.T) {
	f := newFixture(t)
	existing := f.queued(t, domain.ContentTypeBlog, 2)

	b1 := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)
	l1 := f.piece(t, domain.ContentTypeLinkedIn, domain.PieceStatusDraft)
	b2 := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)

	queued, err := f.mgr.InsertBatch(context.Background(), []uuid.UUID{b1, l1, b2})
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, 3, queued[0].Position())
	assert.Equal(t, 1, queued[1].Position())
	assert.Equal(t, 4, queued[2].Position())

	assert.Equal(t, []uuid.UUID{existing[0], existing[1], b1, b2}, f.order(t, domain.ContentTypeBlog))
	assert.Equal(t, []uuid.UUID{l1}, f.order(t, domain.ContentTypeLinkedIn))
}

func TestInsertBatch_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	already := f.queued(t, domain.ContentTypeBlog, 1)[0]
	fresh := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)

	_, err := f.mgr.InsertBatch(context.Background(), []uuid.UUID{fresh, already})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	p, err := f.store.GetPiece(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusDraft, p.Status, "first item must roll back")
	assert.Equal(t, []uuid.UUID{already}, f.order(t, domain.ContentTypeBlog))
}

func TestInsertBatch_RejectsEmptyAndDuplicates(t *testing.T) {
	f := newFixture(t)
	id := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)

	var v *domain.ValidationError
	_, err := f.mgr.InsertBatch(context.Background(), nil)
	require.ErrorAs(t, err, &v)

	_, err = f.mgr.InsertBatch(context.Background(), []uuid.UUID{id, id})
	require.ErrorAs(t, err, &v)
}

// Scenario: removing b from [a,b,c] leaves [a,c].
func TestRemove_ClosesGap(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeLinkedIn, 3)

	require.NoError(t, f.mgr.Remove(context.Background(), ids[1]))

	assert.Equal(t, []uuid.UUID{ids[0], ids[2]}, f.order(t, domain.ContentTypeLinkedIn))
	p, err := f.store.GetPiece(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusDraft, p.Status)
	assert.Nil(t, p.QueuePosition)
	assertDense(t, f.store, domain.ContentTypeLinkedIn)
}

func TestRemove_PublishedIsRejected(t *testing.T) {
	f := newFixture(t)
	id := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusPublished)

	var v *domain.ValidationError
	require.ErrorAs(t, f.mgr.Remove(context.Background(), id), &v)
}

func TestInsertThenRemove_RestoresOrder(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 3)
	before := f.order(t, domain.ContentTypeBlog)

	extra := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)
	_, err := f.mgr.Insert(context.Background(), extra)
	require.NoError(t, err)
	require.NoError(t, f.mgr.Remove(context.Background(), extra))

	assert.Equal(t, before, f.order(t, domain.ContentTypeBlog))
	assert.Equal(t, ids, before)
}

func TestReorder(t *testing.T) {
	t.Helper()
	runReorderTests(t)
}

func runReorderTests(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name      string
		size      int
		move      int
		to        int
		want      []int
		unchanged bool
	}{
		// Scenario: Reorder(c, 1) on [a,b,c] gives [c,a,b].
		{name: "move tail to head", size: 3, move: 2, to: 1, want: []int{2, 0, 1}},
		// Scenario: Reorder(a, 2) on [a,b] gives [b,a].
		{name: "move head down", size: 2, move: 0, to: 2, want: []int{1, 0}},
		{name: "move into middle", size: 4, move: 0, to: 3, want: []int{1, 2, 0, 3}},
		{name: "clamped to tail", size: 3, move: 0, to: 99, want: []int{1, 2, 0}},
		{name: "same position is unchanged", size: 3, move: 1, to: 2, want: []int{0, 1, 2}, unchanged: true},
		{name: "clamped tail is unchanged", size: 3, move: 2, to: 10, want: []int{0, 1, 2}, unchanged: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ids := f.queued(t, domain.ContentTypeBlog, tc.size)

			res, err := f.mgr.Reorder(context.Background(), ids[tc.move], tc.to, domain.ContentTypeBlog)
			require.NoError(t, err)
			assert.Equal(t, tc.unchanged, res.Unchanged)

			want := make([]uuid.UUID, len(tc.want))
			for i, idx := range tc.want {
				want[i] = ids[idx]
			}
			got := make([]uuid.UUID, len(res.Queue))
			for i, p := range res.Queue {
				got[i] = p.ID
			}
			assert.Equal(t, want, got)
			assert.Equal(t, want, f.order(t, domain.ContentTypeBlog))
			assertDense(t, f.store, domain.ContentTypeBlog)
		})
	}
}

func TestReorder_UnqueuedPieceIsInserted(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeLinkedIn, 2)
	draft := f.piece(t, domain.ContentTypeLinkedIn, domain.PieceStatusDraft)

	res, err := f.mgr.Reorder(context.Background(), draft, 1, domain.ContentTypeLinkedIn)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, []uuid.UUID{draft, ids[0], ids[1]}, f.order(t, domain.ContentTypeLinkedIn))

	other := f.piece(t, domain.ContentTypeLinkedIn, domain.PieceStatusDraft)
	_, err = f.mgr.Reorder(context.Background(), other, 50, domain.ContentTypeLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{draft, ids[0], ids[1], other}, f.order(t, domain.ContentTypeLinkedIn))
}

func TestReorder_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 4)

	first, err := f.mgr.Reorder(context.Background(), ids[3], 2, domain.ContentTypeBlog)
	require.NoError(t, err)
	second, err := f.mgr.Reorder(context.Background(), ids[3], 2, domain.ContentTypeBlog)
	require.NoError(t, err)

	assert.True(t, second.Unchanged)
	assert.Equal(t, first.Queue, second.Queue)
}

func TestReorder_Errors(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 2)
	before := f.store.Writes()

	var v *domain.ValidationError
	_, err := f.mgr.Reorder(context.Background(), ids[0], 0, domain.ContentTypeBlog)
	require.ErrorAs(t, err, &v)

	_, err = f.mgr.Reorder(context.Background(), ids[0], 1, domain.ContentTypeLinkedIn)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.mgr.Reorder(context.Background(), uuid.New(), 1, domain.ContentTypeBlog)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.mgr.Reorder(context.Background(), ids[0], 1, domain.ContentType("fax"))
	require.ErrorAs(t, err, &v)

	assert.Equal(t, before, f.store.Writes())
}

func TestRetry(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeLinkedIn, 2)
	failed := f.piece(t, domain.ContentTypeLinkedIn, domain.PieceStatusFailed)
	require.NoError(t, f.store.InTx(context.Background(), func(tx store.Tx) error {
		return tx.MarkFailed(context.Background(), failed, "LinkedIn API error: 500")
	}))

	p, err := f.mgr.Retry(context.Background(), failed)
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusQueued, p.Status)
	assert.Equal(t, 3, p.Position())
	assert.Nil(t, p.ErrorMessage)
	assert.Equal(t, []uuid.UUID{ids[0], ids[1], failed}, f.order(t, domain.ContentTypeLinkedIn))
}

func TestRetry_NonFailedIsNotFound(t *testing.T) {
	f := newFixture(t)
	draft := f.piece(t, domain.ContentTypeBlog, domain.PieceStatusDraft)

	_, err := f.mgr.Retry(context.Background(), draft)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "failed piece")
}

func TestSnapshot_CoversEveryType(t *testing.T) {
	f := newFixture(t)
	f.queued(t, domain.ContentTypeBlog, 1)

	snap, err := f.mgr.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap[domain.ContentTypeBlog], 1)
	assert.NotNil(t, snap[domain.ContentTypeLinkedIn])
	assert.Empty(t, snap[domain.ContentTypeLinkedIn])
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 3)
	f.store.FailOn("ShiftQueue", errors.New("disk full"))

	err := f.mgr.Remove(context.Background(), ids[0])
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)

	f.store.FailOn("ShiftQueue", nil)
	assert.Equal(t, ids, f.order(t, domain.ContentTypeBlog))
}

func TestVerifyDense_DetectsGap(t *testing.T) {
	f := newFixture(t)
	ids := f.queued(t, domain.ContentTypeBlog, 3)

	err := f.store.InTx(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.ClearQueuePosition(context.Background(), ids[1], domain.PieceStatusDraft))
		return queue.VerifyDense(context.Background(), tx, domain.ContentTypeBlog)
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	assertDense(t, f.store, domain.ContentTypeBlog)
}

func TestQueueBusyIsConflict(t *testing.T) {
	s := memstore.New()
	locker := lock.NewLocal(20 * time.Millisecond)
	mgr := queue.NewManager(s, locker, logger.NewNop())

	idea := &domain.Idea{Content: "x", Status: domain.IdeaStatusNew}
	require.NoError(t, s.CreateIdea(context.Background(), idea))
	p := &domain.ContentPiece{IdeaID: idea.ID, Type: domain.ContentTypeBlog, Content: "c", Status: domain.PieceStatusDraft}
	require.NoError(t, s.CreatePieces(context.Background(), []*domain.ContentPiece{p}))

	held, err := locker.Acquire(context.Background(), lock.QueueKey("blog"))
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	_, err = mgr.Insert(context.Background(), p.ID)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRandomOperationsKeepQueuesDense(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewPCG(7, 11))
	ctx := context.Background()

	var pieces []uuid.UUID
	for range 12 {
		ct := domain.ContentTypes[rng.IntN(len(domain.ContentTypes))]
		pieces = append(pieces, f.piece(t, ct, domain.PieceStatusDraft))
	}

	for step := range 400 {
		id := pieces[rng.IntN(len(pieces))]
		p, err := f.store.GetPiece(ctx, id)
		require.NoError(t, err)

		switch rng.IntN(5) {
		case 0:
			_, err = f.mgr.Insert(ctx, id)
		case 1:
			err = f.mgr.Remove(ctx, id)
		case 2:
			_, err = f.mgr.Reorder(ctx, id, 1+rng.IntN(8), p.Type)
		case 3:
			if p.Status == domain.PieceStatusQueued {
				err = f.store.InTx(ctx, func(tx store.Tx) error {
					if markErr := tx.MarkFailed(ctx, id, "boom"); markErr != nil {
						return markErr
					}
					return queue.CloseGap(ctx, tx, p.Type, p.Position())
				})
			}
		case 4:
			_, err = f.mgr.Retry(ctx, id)
		}

		var (
			conflict *domain.ConflictError
			invalid  *domain.ValidationError
		)
		if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.As(err, &conflict) && !errors.As(err, &invalid) {
			t.Fatalf("step %d: unexpected error %v", step, err)
		}

		for _, ct := range domain.ContentTypes {
			assertDense(t, f.store, ct)
		}
	}
}

// autocommitStore runs every statement on its own, the way a database without
// row locks would interleave two transactions. MaxQueuePosition pauses so that
// concurrent inserts read the tail before either writes it.
type autocommitStore struct {
	*memstore.Store

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *autocommitStore) InTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(s)
}

func (s *autocommitStore) MaxQueuePosition(ctx context.Context, ct domain.ContentType) (int, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxInFlight.Load()
		if n <= seen || s.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	time.Sleep(2 * time.Millisecond)
	return s.Store.MaxQueuePosition(ctx, ct)
}

func TestInsert_ConcurrentInsertsStayDense(t *testing.T) {
	ctx := context.Background()
	s := &autocommitStore{Store: memstore.New()}
	idea := &domain.Idea{Content: "queues are lists", Status: domain.IdeaStatusDrafted}
	require.NoError(t, s.CreateIdea(ctx, idea))
	mgr := queue.NewManager(s, lock.NewLocal(0), logger.NewNop())

	const n = 8
	ids := make([]uuid.UUID, n)
	for i := range ids {
		p := &domain.ContentPiece{IdeaID: idea.ID, Type: domain.ContentTypeLinkedIn, Content: "body"}
		require.NoError(t, s.CreatePieces(ctx, []*domain.ContentPiece{p}))
		ids[i] = p.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = mgr.Insert(ctx, id)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "insert %d", i)
	}
	assert.Equal(t, int32(1), s.maxInFlight.Load(), "tail read while another insert held it")
	assertDense(t, s, domain.ContentTypeLinkedIn)

	positions := make(map[int]bool, n)
	for _, id := range ids {
		p, err := s.GetPiece(ctx, id)
		require.NoError(t, err)
		assert.False(t, positions[p.Position()], "position %d assigned twice", p.Position())
		positions[p.Position()] = true
	}
	assert.Len(t, positions, n)
}
