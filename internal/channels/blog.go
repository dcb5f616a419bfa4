package channels

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

const excerptRunes = 200

var errEmptyBlogContent = errors.New("blog content is empty")

// Blog publishes to the site's own blog_posts table. The row itself is
// written by the publish cycle in the same transaction that marks the piece
// published, so Publish only prepares it.
type Blog struct {
	now func() time.Time
}

var _ Publisher = (*Blog)(nil)

func NewBlog() *Blog {
	return &Blog{now: time.Now}
}

func (b *Blog) Publish(ctx context.Context, item Item) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(item.Content) == "" {
		return nil, errEmptyBlogContent
	}
	if item.Slug == "" {
		return nil, errors.New("blog slug is empty")
	}

	title := item.Title
	if title == "" {
		title = "Untitled"
	}

	post := &domain.BlogPost{
		ID:          uuid.New(),
		Title:       title,
		Slug:        item.Slug,
		Content:     item.Content,
		Excerpt:     Excerpt(item.Content),
		Published:   true,
		PublishedAt: b.now().UTC(),
	}
	id := post.ID.String()
	return &Receipt{ExternalID: &id, Post: post}, nil
}

// Excerpt returns the first 200 runes of content.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:excerptRunes])
}
