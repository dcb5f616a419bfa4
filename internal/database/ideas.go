package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/content-studio/internal/domain"
)

const ideaSelectList = `id, content, source, status, created_at`

// CreateIdea inserts idea, assigning an id when unset.
func (r *Repository) CreateIdea(ctx context.Context, idea *domain.Idea) error {
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}

	query := `
		INSERT INTO ideas (id, content, source, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`

	if err := r.q.QueryRowxContext(ctx, query, idea.ID, idea.Content, idea.Source, idea.Status).
		Scan(&idea.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create idea: %w", err)
	}
	return nil
}

func (r *Repository) GetIdea(ctx context.Context, id uuid.UUID) (*domain.Idea, error) {
	var idea domain.Idea
	query := `SELECT ` + ideaSelectList + ` FROM ideas WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &idea, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "idea", ID: id.String()}
		}
		return nil, fmt.Errorf("get idea: %w", err)
	}
	return &idea, nil
}

func (r *Repository) ListIdeas(ctx context.Context, statuses []domain.IdeaStatus) ([]domain.Idea, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT ` + ideaSelectList + `
		FROM ideas
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY created_at DESC`

	ideas := make([]domain.Idea, 0)
	if err := sqlx.SelectContext(ctx, r.q, &ideas, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, nil
}

func (r *Repository) UpdateIdeaStatus(ctx context.Context, id uuid.UUID, status domain.IdeaStatus) error {
	query := `UPDATE ideas SET status = $2 WHERE id = $1`
	if err := r.execExpectOneRow(ctx, "idea", id.String(), query, id, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update idea status: %w", err)
	}
	return nil
}
