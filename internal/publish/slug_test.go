package publish_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/content-studio/internal/publish"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		title string
		want  string
	}{
		{title: "Hello, World!", want: "hello-world"},
		{title: "  Dense   Queues  ", want: "dense-queues"},
		{title: "Go 1.26 release notes", want: "go-1-26-release-notes"},
		{title: "---", want: "untitled"},
		{title: "", want: "untitled"},
		{title: "Café au lait", want: "caf-au-lait"},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, publish.Slugify(tc.title))
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"post": true, "post-2": true}
	exists := func(_ context.Context, slug string) (bool, error) { return taken[slug], nil }

	got, err := publish.UniqueSlug(context.Background(), "post", exists)
	require.NoError(t, err)
	assert.Equal(t, "post-3", got)

	got, err = publish.UniqueSlug(context.Background(), "fresh", exists)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	boom := errors.New("boom")
	_, err = publish.UniqueSlug(context.Background(), "post", func(context.Context, string) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}
