package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/content-studio/internal/domain"
)

const blogSelectList = `id, title, slug, content, excerpt, published, published_at, created_at`

func (r *Repository) BlogSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM blog_posts WHERE slug = $1)`
	if err := sqlx.GetContext(ctx, r.q, &exists, query, slug); err != nil {
		return false, fmt.Errorf("blog slug exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) CreateBlogPost(ctx context.Context, post *domain.BlogPost) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}

	query := `
		INSERT INTO blog_posts (id, title, slug, content, excerpt, published, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.q.QueryRowxContext(ctx, query,
		post.ID, post.Title, post.Slug, post.Content, post.Excerpt, post.Published, post.PublishedAt,
	).Scan(&post.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create blog post: %w", err)
	}
	return nil
}

func (r *Repository) ListBlogPosts(ctx context.Context, limit int) ([]domain.BlogPost, error) {
	query := `
		SELECT ` + blogSelectList + `
		FROM blog_posts
		WHERE published = TRUE
		ORDER BY published_at DESC
		LIMIT $1`

	posts := make([]domain.BlogPost, 0)
	if err := sqlx.SelectContext(ctx, r.q, &posts, query, limit); err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	return posts, nil
}

func (r *Repository) GetBlogPostBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	var post domain.BlogPost
	query := `SELECT ` + blogSelectList + ` FROM blog_posts WHERE slug = $1 AND published = TRUE`
	if err := sqlx.GetContext(ctx, r.q, &post, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "blog post", ID: slug}
		}
		return nil, fmt.Errorf("get blog post: %w", err)
	}
	return &post, nil
}
