package publish_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/channels"
	"github.com/jonesrussell/content-studio/internal/channels/mocks"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/publish"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/store/memstore"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

type fixture struct {
	store  *memstore.Store
	locker lock.Locker
	queue  *queue.Manager
	tp     *telemetry.Provider
	idea   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memstore.New()
	idea := &domain.Idea{Content: "ship small", Status: domain.IdeaStatusDrafted}
	require.NoError(t, s.CreateIdea(context.Background(), idea))

	locker := lock.NewLocal(time.Second)
	return &fixture{
		store:  s,
		locker: locker,
		queue:  queue.NewManager(s, locker, logger.NewNop()),
		tp:     telemetry.NewProvider(prometheus.NewRegistry()),
		idea:   idea.ID,
	}
}

func (f *fixture) cycle(ct domain.ContentType, channel channels.Publisher, timeout time.Duration) *publish.Cycle {
	return publish.NewCycle(ct, f.store, f.locker, channel, timeout, f.tp, logger.NewNop())
}

func (f *fixture) enable(t *testing.T, ct domain.ContentType, on bool) {
	t.Helper()

	value := "false"
	if on {
		value = "true"
	}
	require.NoError(t, f.store.UpsertSetting(context.Background(), ct.SettingKey(), value))
}

func (f *fixture) piece(t *testing.T, ct domain.ContentType, title string, status domain.PieceStatus) uuid.UUID {
	t.Helper()

	p := &domain.ContentPiece{IdeaID: f.idea, Type: ct, Content: "body of " + title, Status: status}
	if title != "" {
		p.Title = &title
	}
	require.NoError(t, f.store.CreatePieces(context.Background(), []*domain.ContentPiece{p}))
	return p.ID
}

func (f *fixture) queued(t *testing.T, ct domain.ContentType, titles ...string) []uuid.UUID {
	t.Helper()

	ids := make([]uuid.UUID, len(titles))
	for i, title := range titles {
		ids[i] = f.piece(t, ct, title, domain.PieceStatusDraft)
	}
	_, err := f.queue.InsertBatch(context.Background(), ids)
	require.NoError(t, err)
	return ids
}

func (f *fixture) order(t *testing.T, ct domain.ContentType) []uuid.UUID {
	t.Helper()

	pieces, err := f.queue.List(context.Background(), ct)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(pieces))
	for i, p := range pieces {
		assert.Equal(t, i+1, p.Position())
		ids[i] = p.ID
	}
	return ids
}

func strPtr(s string) *string { return &s }

func TestCycle_PublishesHeadAndAdvances(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	ids := f.queued(t, domain.ContentTypeLinkedIn, "x", "y", "z")

	ctrl := gomock.NewController(t)
	channel := mocks.NewMockPublisher(ctrl)
	channel.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, item channels.Item) (*channels.Receipt, error) {
			assert.Equal(t, ids[0], item.PieceID)
			assert.Equal(t, "body of x", item.Content)
			assert.Empty(t, item.Slug)
			return &channels.Receipt{ExternalID: strPtr("urn:li:share:1")}, nil
		})

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomePublished, res.Outcome)
	assert.Equal(t, ids[0].String(), *res.PieceID)
	assert.Equal(t, "urn:li:share:1", *res.ExternalID)

	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeLinkedIn))

	published, err := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusPublished, published.Status)
	assert.Nil(t, published.QueuePosition)
	assert.Equal(t, "urn:li:share:1", *published.ExternalID)
	assert.NotNil(t, published.PublishedAt)
}

func TestCycle_FailedPieceBlocksQueue(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	ids := f.queued(t, domain.ContentTypeLinkedIn, "a", "b")
	failed := f.piece(t, domain.ContentTypeLinkedIn, "broken", domain.PieceStatusFailed)
	writes := f.store.Writes()

	channel := mocks.NewMockPublisher(gomock.NewController(t))

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeSkippedFailedExists, res.Outcome)
	assert.Equal(t, failed.String(), *res.PieceID)
	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, ids, f.order(t, domain.ContentTypeLinkedIn))
}

func TestCycle_FailedPieceOfOtherTypeDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	f.queued(t, domain.ContentTypeLinkedIn, "a")
	f.piece(t, domain.ContentTypeBlog, "broken", domain.PieceStatusFailed)

	channel := mocks.NewMockPublisher(gomock.NewController(t))
	channel.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(&channels.Receipt{ExternalID: strPtr("1")}, nil)

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomePublished, res.Outcome)
}

func TestCycle_Disabled(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
	}{
		{name: "setting false", setup: func(t *testing.T, f *fixture) { f.enable(t, domain.ContentTypeBlog, false) }},
		{name: "setting missing", setup: func(*testing.T, *fixture) {}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(t, f)
			ids := f.queued(t, domain.ContentTypeBlog, "a")
			writes := f.store.Writes()

			channel := mocks.NewMockPublisher(gomock.NewController(t))

			res, err := f.cycle(domain.ContentTypeBlog, channel, time.Second).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, publish.OutcomeDisabled, res.Outcome)
			assert.Equal(t, writes, f.store.Writes())
			assert.Equal(t, ids, f.order(t, domain.ContentTypeBlog))
		})
	}
}

func TestCycle_EmptyQueue(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	channel := mocks.NewMockPublisher(gomock.NewController(t))

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeEmpty, res.Outcome)
	assert.Nil(t, res.PieceID)
}

func TestCycle_ChannelFailureMarksPieceFailed(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	ids := f.queued(t, domain.ContentTypeLinkedIn, "x", "y")

	channel := mocks.NewMockPublisher(gomock.NewController(t))
	channel.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("LinkedIn access token missing"))

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	require.NotNil(t, res)
	assert.Equal(t, publish.OutcomeFailed, res.Outcome)
	assert.Equal(t, "LinkedIn access token missing", res.Message)

	failed, getErr := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, getErr)
	assert.Equal(t, domain.PieceStatusFailed, failed.Status)
	assert.Nil(t, failed.QueuePosition)
	assert.Equal(t, "LinkedIn access token missing", *failed.ErrorMessage)
	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeLinkedIn))

	// The failure now blocks the next cycle.
	res, err = f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeSkippedFailedExists, res.Outcome)
}

func TestCycle_ChannelTimeoutIsFailure(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	ids := f.queued(t, domain.ContentTypeLinkedIn, "slow")

	channel := mocks.NewMockPublisher(gomock.NewController(t))
	channel.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ channels.Item) (*channels.Receipt, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, 20*time.Millisecond).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, publish.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "timed out")

	piece, getErr := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, getErr)
	assert.Equal(t, domain.PieceStatusFailed, piece.Status)
}

func TestCycle_BlogWritesPostWithUniqueSlug(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeBlog, true)
	require.NoError(t, f.store.CreateBlogPost(context.Background(), &domain.BlogPost{
		Title: "Hello, World!", Slug: "hello-world", Content: "earlier", Published: true, PublishedAt: time.Now(),
	}))
	ids := f.queued(t, domain.ContentTypeBlog, "Hello, World!", "Next")

	res, err := f.cycle(domain.ContentTypeBlog, channels.NewBlog(), time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomePublished, res.Outcome)
	assert.Equal(t, "hello-world-2", res.Slug)

	post, err := f.store.GetBlogPostBySlug(context.Background(), "hello-world-2")
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", post.Title)
	assert.Equal(t, "body of Hello, World!", post.Content)
	assert.Equal(t, post.ID.String(), *res.ExternalID)

	published, err := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, post.PublishedAt, *published.PublishedAt)
	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeBlog))
}

func TestCycle_RecordFailureParksHead(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	ids := f.queued(t, domain.ContentTypeLinkedIn, "x", "y")

	ctrl := gomock.NewController(t)
	channel := mocks.NewMockPublisher(ctrl)
	channel.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(&channels.Receipt{ExternalID: strPtr("urn:li:share:7")}, nil).
		Times(1)

	f.store.FailOn("MarkPublished", errors.New("connection reset"))
	cycle := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second)

	res, err := cycle.Run(context.Background())
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	require.NotNil(t, res)
	assert.Equal(t, publish.OutcomeFailed, res.Outcome)

	parked, getErr := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, getErr)
	assert.Equal(t, domain.PieceStatusFailed, parked.Status)
	assert.Nil(t, parked.QueuePosition)
	require.NotNil(t, parked.ErrorMessage)
	assert.Contains(t, *parked.ErrorMessage, "may already exist")
	assert.Contains(t, *parked.ErrorMessage, "urn:li:share:7")
	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeLinkedIn))

	f.store.FailOn("MarkPublished", nil)
	res, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeSkippedFailedExists, res.Outcome)
	assert.Equal(t, ids[0].String(), *res.PieceID)
}

func TestCycle_BlogRecordFailureRollsBackPost(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeBlog, true)
	ids := f.queued(t, domain.ContentTypeBlog, "a", "b")
	f.store.FailOn("MarkPublished", errors.New("connection reset"))

	res, err := f.cycle(domain.ContentTypeBlog, channels.NewBlog(), time.Second).Run(context.Background())
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, publish.OutcomeFailed, res.Outcome)

	_, err = f.store.GetBlogPostBySlug(context.Background(), "a")
	require.ErrorIs(t, err, domain.ErrNotFound)

	parked, err := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusFailed, parked.Status)
	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeBlog))
}

func TestCycle_SlugCheckFailureParksHead(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeBlog, true)
	ids := f.queued(t, domain.ContentTypeBlog, "a", "b")
	f.store.FailOn("BlogSlugExists", errors.New("connection reset"))

	channel := mocks.NewMockPublisher(gomock.NewController(t))
	res, err := f.cycle(domain.ContentTypeBlog, channel, time.Second).Run(context.Background())
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, publish.OutcomeFailed, res.Outcome)

	parked, err := f.store.GetPiece(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusFailed, parked.Status)
	require.NotNil(t, parked.ErrorMessage)
	assert.Contains(t, *parked.ErrorMessage, "check blog slug")
	assert.Equal(t, ids[1:], f.order(t, domain.ContentTypeBlog))
}

func TestCycle_SettingReadErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("GetSetting", errors.New("connection refused"))
	channel := mocks.NewMockPublisher(gomock.NewController(t))

	_, err := f.cycle(domain.ContentTypeBlog, channel, time.Second).Run(context.Background())
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
}

func TestCycle_BusyWhenAnotherCycleRuns(t *testing.T) {
	f := newFixture(t)
	f.enable(t, domain.ContentTypeLinkedIn, true)
	f.queued(t, domain.ContentTypeLinkedIn, "x")

	held, err := f.locker.TryAcquire(context.Background(), lock.PublishKey(string(domain.ContentTypeLinkedIn)))
	require.NoError(t, err)
	require.NotNil(t, held)
	t.Cleanup(func() { _ = held.Release(context.Background()) })

	channel := mocks.NewMockPublisher(gomock.NewController(t))
	res, err := f.cycle(domain.ContentTypeLinkedIn, channel, time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeBusy, res.Outcome)
}

func TestService_Run(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	registry := channels.Registry{
		domain.ContentTypeBlog:     channels.NewBlog(),
		domain.ContentTypeLinkedIn: mocks.NewMockPublisher(ctrl),
	}

	svc, err := publish.NewService(f.store, f.locker, registry, time.Second, f.tp, logger.NewNop())
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), domain.ContentTypeBlog)
	require.NoError(t, err)
	assert.Equal(t, publish.OutcomeDisabled, res.Outcome)

	var v *domain.ValidationError
	_, err = svc.Run(context.Background(), domain.ContentType("tiktok"))
	require.ErrorAs(t, err, &v)

	_, err = publish.NewService(f.store, f.locker, channels.Registry{}, time.Second, f.tp, logger.NewNop())
	require.Error(t, err)
}
