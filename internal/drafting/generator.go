// Package drafting turns ideas into draft content pieces through a language
// model and manages the ideas and drafts the operator edits.
package drafting

import (
	"context"
	"strings"

	"github.com/jonesrussell/content-studio/internal/domain"
)

// Counts is how many drafts of each type to request.
type Counts struct {
	LinkedIn int `json:"linkedin_count"`
	Blog     int `json:"blog_count"`
}

// Total is the number of drafts requested.
func (c Counts) Total() int { return c.LinkedIn + c.Blog }

func (c Counts) of(t domain.ContentType) int {
	if t == domain.ContentTypeBlog {
		return c.Blog
	}
	return c.LinkedIn
}

// Limits caps a generation request.
type Limits struct {
	MaxLinkedIn int
	MaxBlog     int
	MaxTotal    int
}

// Validate enforces the per-type and aggregate caps.
func (l Limits) Validate(c Counts) error {
	switch {
	case c.LinkedIn < 0 || c.Blog < 0:
		return &domain.ValidationError{Field: "counts", Message: "must not be negative"}
	case c.LinkedIn > l.MaxLinkedIn:
		return &domain.ValidationError{Field: "linkedin_count", Message: "exceeds the LinkedIn draft limit"}
	case c.Blog > l.MaxBlog:
		return &domain.ValidationError{Field: "blog_count", Message: "exceeds the blog draft limit"}
	case c.Total() > l.MaxTotal:
		return &domain.ValidationError{Field: "counts", Message: "exceeds the total draft limit"}
	case c.Total() == 0:
		return &domain.ValidationError{Field: "counts", Message: "request at least one draft"}
	}
	return nil
}

// Revision is a regenerated draft. Title is nil for types without titles.
type Revision struct {
	Title   *string
	Content string
}

// RegenerateRequest carries what the model needs to rewrite one draft.
type RegenerateRequest struct {
	Idea    string
	Type    domain.ContentType
	Current string
}

// Generator is the language model behind drafting. Malformed output is an
// error.
type Generator interface {
	Generate(ctx context.Context, idea string, counts Counts) ([]domain.DraftPiece, error)
	Regenerate(ctx context.Context, req RegenerateRequest) (*Revision, error)
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
