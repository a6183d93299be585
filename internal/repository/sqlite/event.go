package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

const defaultEventLimit = 50

// AppendEvent inserts a platform event, assigning an ID and timestamp if unset.
func (db *DB) AppendEvent(ctx context.Context, event *model.PlatformEvent) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = db.now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (id, event_type, user_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		event.EventType,
		event.UserID,
		event.Description,
		toMillis(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending %s event: %w", event.EventType, err)
	}
	return nil
}

// ListEventsByUser returns a user's events, newest first.
func (db *DB) ListEventsByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.PlatformEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, event_type, user_id, description, created_at
		 FROM events
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for %s: %w", userID, err)
	}
	defer rows.Close()

	events := []model.PlatformEvent{}
	for rows.Next() {
		var ev model.PlatformEvent
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.UserID, &ev.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		ev.Timestamp = fromMillis(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event rows: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes events older than cutoff and reports how many.
func (db *DB) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < ?`,
		toMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting pruned events: %w", err)
	}
	return n, nil
}
