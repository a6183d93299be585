// Package eventlog records platform events such as completions and logins.
//
// Events are best effort. Callers go through Publish, which logs a failed
// append and carries on, so an unavailable sink never fails a user request.
//
// SINKS:
// The server composes them with Multi, and every event goes to each one:
//
//	SlogSink   → one structured log line per event
//	StoreSink  → the events table, listed by GET /api/events
//	RedisSink  → XADD onto a stream for other services (only with REDIS_ADDR)
//
// Publish stamps the ID and timestamp once before fanning out, so the log
// line, the stored row and the stream entry all agree.
package eventlog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

// Sink appends one event.
type Sink interface {
	Append(ctx context.Context, event model.PlatformEvent) error
}

// Publish appends event to sink and logs instead of returning a failure.
// A missing ID or timestamp is filled in so every sink sees the same values.
// A nil sink drops the event.
func Publish(ctx context.Context, sink Sink, logger *slog.Logger, event model.PlatformEvent) {
	if sink == nil {
		return
	}
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := sink.Append(ctx, event); err != nil {
		logger.Warn("failed to record platform event",
			slog.String("eventType", event.EventType),
			slog.String("userID", event.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink that logs every event at info level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Append implements Sink.
func (s *SlogSink) Append(ctx context.Context, event model.PlatformEvent) error {
	s.logger.InfoContext(ctx, "platform event",
		slog.String("eventType", event.EventType),
		slog.String("userID", event.UserID),
		slog.String("description", event.Description),
		slog.Time("timestamp", event.Timestamp),
	)
	return nil
}

// StoreSink persists events through an EventRepository so they can be listed
// later by GET /api/events.
type StoreSink struct {
	repo repository.EventRepository
}

// NewStoreSink wraps repo.
func NewStoreSink(repo repository.EventRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

// Append implements Sink.
func (s *StoreSink) Append(ctx context.Context, event model.PlatformEvent) error {
	return s.repo.AppendEvent(ctx, &event)
}

// Multi fans an event out to every sink. All sinks are attempted even when an
// earlier one fails; the failures are joined.
type Multi []Sink

// Append implements Sink.
func (m Multi) Append(ctx context.Context, event model.PlatformEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
