package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/cmdshift-learn/internal/model"
)

// DefaultStream is the Redis stream events are added to.
const DefaultStream = "cmdshift:events"

// streamAdder is the part of redis.Cmdable the sink needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink adds each event to a capped Redis stream so other services can
// consume it with XREAD / consumer groups.
type RedisSink struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisSink returns a sink writing to stream. maxLen caps the stream
// approximately; zero leaves it uncapped.
func NewRedisSink(client redis.Cmdable, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("eventlog: connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Append implements Sink.
func (s *RedisSink) Append(ctx context.Context, event model.PlatformEvent) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":          event.ID,
			"eventType":   event.EventType,
			"userId":      event.UserID,
			"description": event.Description,
			"timestamp":   event.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("eventlog: adding %s to stream %s: %w", event.EventType, s.stream, err)
	}
	return nil
}
