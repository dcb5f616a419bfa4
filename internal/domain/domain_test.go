package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/content-studio/internal/domain"
)

func TestIdeaStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to domain.IdeaStatus
		want     bool
	}{
		{domain.IdeaStatusNew, domain.IdeaStatusGenerating, true},
		{domain.IdeaStatusNew, domain.IdeaStatusDrafted, true},
		{domain.IdeaStatusGenerating, domain.IdeaStatusDrafted, true},
		{domain.IdeaStatusGenerating, domain.IdeaStatusNew, true},
		{domain.IdeaStatusDrafted, domain.IdeaStatusNew, false},
		{domain.IdeaStatusDrafted, domain.IdeaStatusGenerating, false},
		{domain.IdeaStatusDrafted, domain.IdeaStatusDrafted, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestNotFoundError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("lookup: %w", &domain.NotFoundError{Resource: "content piece", ID: "abc"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "lookup: content piece abc not found", err.Error())
}

func TestPersistence_KeepsClassifiedErrors(t *testing.T) {
	t.Parallel()

	conflict := &domain.ConflictError{Message: "positions not dense"}
	assert.Same(t, conflict, domain.Persistence("reorder", conflict))

	notFound := &domain.NotFoundError{Resource: "idea"}
	assert.Same(t, notFound, domain.Persistence("get idea", notFound))

	raw := errors.New("connection reset")
	var pErr *domain.PersistenceError
	assert.ErrorAs(t, domain.Persistence("insert", raw), &pErr)
	assert.Equal(t, "insert", pErr.Op)
	assert.ErrorIs(t, pErr, raw)

	assert.NoError(t, domain.Persistence("noop", nil))
}

func TestParseContentType(t *testing.T) {
	t.Parallel()

	ct, err := domain.ParseContentType("blog")
	assert.NoError(t, err)
	assert.Equal(t, domain.ContentTypeBlog, ct)
	assert.Equal(t, "blog_posting_enabled", ct.SettingKey())

	_, err = domain.ParseContentType("twitter")
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
