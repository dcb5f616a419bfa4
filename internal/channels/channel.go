// Package channels holds the outbound publishing targets, one per content type.
package channels

//go:generate mockgen -destination=mocks/publisher_mock.go -package=mocks . Publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

// Item is the finalized piece handed to a channel.
type Item struct {
	PieceID uuid.UUID
	Type    domain.ContentType
	Title   string
	// Slug is set for blog items only.
	Slug    string
	Content string
}

// Receipt is a successful publish. Post is set when the channel produced a
// blog artifact that the caller must persist alongside the piece.
type Receipt struct {
	ExternalID *string
	Post       *domain.BlogPost
}

// Publisher publishes one item. Errors carry a message fit for the piece's
// error_message column.
type Publisher interface {
	Publish(ctx context.Context, item Item) (*Receipt, error)
}

// Registry maps each content type to its channel.
type Registry map[domain.ContentType]Publisher

// For returns the channel for t.
func (r Registry) For(t domain.ContentType) (Publisher, error) {
	p, ok := r[t]
	if !ok || p == nil {
		return nil, fmt.Errorf("no publishing channel for %s", t)
	}
	return p, nil
}
