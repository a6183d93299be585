package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

var _ repository.ContentRepository = (*DB)(nil)

// UpsertContent inserts or replaces a catalog entry keyed by (kind, id).
func (db *DB) UpsertContent(ctx context.Context, item *model.ContentItem) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO content_items (id, kind, title, xp, difficulty)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET
			title = excluded.title,
			xp = excluded.xp,
			difficulty = excluded.difficulty`,
		item.ID,
		string(item.Kind),
		item.Title,
		item.XP,
		item.Difficulty,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s %s: %w", item.Kind, item.ID, err)
	}
	return nil
}

// GetContent returns a catalog entry or apperror.ErrNotFound.
func (db *DB) GetContent(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error) {
	item := model.ContentItem{Kind: kind}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, xp, difficulty FROM content_items WHERE kind = ? AND id = ?`,
		string(kind), id,
	).Scan(&item.ID, &item.Title, &item.XP, &item.Difficulty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", kind, id, err)
	}
	return &item, nil
}
