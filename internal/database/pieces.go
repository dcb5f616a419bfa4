package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/content-studio/internal/domain"
)

const pieceSelectList = `id, idea_id, type, title, content, status, queue_position,
			external_id, error_message, published_at, created_at, updated_at`

// CreatePieces inserts every piece with one multi-row statement.
func (r *Repository) CreatePieces(ctx context.Context, pieces []*domain.ContentPiece) error {
	if len(pieces) == 0 {
		return nil
	}

	const cols = 6
	values := make([]string, 0, len(pieces))
	args := make([]any, 0, len(pieces)*cols)
	for i, p := range pieces {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Status == "" {
			p.Status = domain.PieceStatusDraft
		}
		n := i * cols
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, NOW(), NOW())",
			n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, p.ID, p.IdeaID, p.Type, p.Title, p.Content, p.Status)
	}

	query := `
		INSERT INTO content_pieces (id, idea_id, type, title, content, status, created_at, updated_at)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id, created_at, updated_at`

	rows, err := r.q.QueryxContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create pieces: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*domain.ContentPiece, len(pieces))
	for _, p := range pieces {
		byID[p.ID] = p
	}
	for rows.Next() {
		var (
			id                   uuid.UUID
			createdAt, updatedAt sql.NullTime
		)
		if scanErr := rows.Scan(&id, &createdAt, &updatedAt); scanErr != nil {
			return fmt.Errorf("scan created piece: %w", scanErr)
		}
		if p, ok := byID[id]; ok {
			p.CreatedAt = createdAt.Time
			p.UpdatedAt = updatedAt.Time
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("create pieces: %w", err)
	}
	return nil
}

func (r *Repository) GetPiece(ctx context.Context, id uuid.UUID) (*domain.ContentPiece, error) {
	var p domain.ContentPiece
	query := `SELECT ` + pieceSelectList + ` FROM content_pieces WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "content piece", ID: id.String()}
		}
		return nil, fmt.Errorf("get piece: %w", err)
	}
	return &p, nil
}

// ListPieces builds its WHERE clause from the non-zero filter fields.
func (r *Repository) ListPieces(ctx context.Context, f domain.PieceFilter) ([]domain.ContentPiece, error) {
	var (
		conds []string
		args  []any
	)
	if f.IdeaID != nil {
		args = append(args, *f.IdeaID)
		conds = append(conds, fmt.Sprintf("idea_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT ` + pieceSelectList + ` FROM content_pieces`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	pieces := make([]domain.ContentPiece, 0)
	if err := sqlx.SelectContext(ctx, r.q, &pieces, query, args...); err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	return pieces, nil
}

func (r *Repository) UpdatePieceContent(ctx context.Context, id uuid.UUID, content string, title *string) error {
	query := `
		UPDATE content_pieces
		SET content = $2,
		    title = COALESCE($3, title),
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, "content piece", id.String(), query, id, content, title); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update piece content: %w", err)
	}
	return nil
}
