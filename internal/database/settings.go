package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/content-studio/internal/domain"
)

func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	query := `SELECT value FROM settings WHERE key = $1`
	if err := sqlx.GetContext(ctx, r.q, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Repository) UpsertSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// PieceStats counts pieces per type and status.
func (r *Repository) PieceStats(ctx context.Context) ([]domain.StatusCount, error) {
	query := `
		SELECT type, status, COUNT(*) AS count
		FROM content_pieces
		GROUP BY type, status
		ORDER BY type, status`

	counts := make([]domain.StatusCount, 0)
	if err := sqlx.SelectContext(ctx, r.q, &counts, query); err != nil {
		return nil, fmt.Errorf("piece stats: %w", err)
	}
	return counts, nil
}

// TableCounts reports exact row counts for the studio tables.
func (r *Repository) TableCounts(ctx context.Context) ([]domain.TableCount, error) {
	query := `
		SELECT 'blog_posts' AS name, COUNT(*) AS rows FROM blog_posts
		UNION ALL SELECT 'content_pieces', COUNT(*) FROM content_pieces
		UNION ALL SELECT 'ideas', COUNT(*) FROM ideas
		UNION ALL SELECT 'settings', COUNT(*) FROM settings`

	var raw []struct {
		Name string `db:"name"`
		Rows int64  `db:"rows"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &raw, query); err != nil {
		return nil, fmt.Errorf("table counts: %w", err)
	}

	counts := make([]domain.TableCount, len(raw))
	for i, row := range raw {
		counts[i] = domain.TableCount{Table: row.Name, Rows: row.Rows}
	}
	return counts, nil
}
