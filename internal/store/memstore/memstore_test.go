package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/store"
	"github.com/jonesrussell/content-studio/internal/store/memstore"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		if createErr := tx.CreateIdea(ctx, &domain.Idea{Content: "x", Status: domain.IdeaStatusNew}); createErr != nil {
			return createErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ideas, err := s.ListIdeas(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ideas)
	assert.Zero(t, s.Writes())
}

func TestFailOn(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	boom := errors.New("disk full")

	s.FailOn("UpsertSetting", boom)
	require.ErrorIs(t, s.UpsertSetting(ctx, "blog_posting_enabled", "true"), boom)

	s.FailOn("UpsertSetting", nil)
	require.NoError(t, s.UpsertSetting(ctx, "blog_posting_enabled", "true"))
	assert.Equal(t, 1, s.Writes())
}

func TestShiftQueue(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	pieces := make([]*domain.ContentPiece, 3)
	for i := range pieces {
		pieces[i] = &domain.ContentPiece{Type: domain.ContentTypeLinkedIn, Content: "p"}
	}
	require.NoError(t, s.CreatePieces(ctx, pieces))
	for i, p := range pieces {
		require.NoError(t, s.SetQueuePosition(ctx, p.ID, i+1))
	}

	require.NoError(t, s.ShiftQueue(ctx, domain.ContentTypeLinkedIn, 2, 0, 1))

	queued, err := s.QueuedPieces(ctx, domain.ContentTypeLinkedIn)
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{queued[0].Position(), queued[1].Position(), queued[2].Position()})
}

func TestBlogPosts(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateBlogPost(ctx, &domain.BlogPost{Title: "Old", Slug: "old", Published: true, PublishedAt: now}))
	require.NoError(t, s.CreateBlogPost(ctx, &domain.BlogPost{Title: "New", Slug: "new", Published: true, PublishedAt: now.Add(time.Hour)}))
	require.ErrorIs(t, s.CreateBlogPost(ctx, &domain.BlogPost{Title: "Dup", Slug: "new"}), domain.ErrAlreadyExists)

	exists, err := s.BlogSlugExists(ctx, "old")
	require.NoError(t, err)
	assert.True(t, exists)

	posts, err := s.ListBlogPosts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "new", posts[0].Slug)

	_, err = s.GetBlogPostBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
