package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	ebomlca "github.com/superdango/ebom-lca"
)

// RedisSink appends events to a redis stream.
type RedisSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisSink returns a sink writing on stream, trimmed to about maxLen entries
// when maxLen is positive.
func NewRedisSink(client redis.Cmdable, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Log(ctx context.Context, event ebomlca.Event) error {
	values, err := streamValues(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add event to stream %s: %w", s.stream, err)
	}
	return nil
}

func streamValues(event ebomlca.Event) (map[string]any, error) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event detail: %w", err)
	}

	return map[string]any{
		"category":    event.Category,
		"action":      event.Action,
		"table_id":    event.TableID,
		"step":        event.Step,
		"duration_ms": strconv.FormatInt(event.DurationMs, 10),
		"detail":      string(detail),
		"at":          event.At.UTC().Format(time.RFC3339Nano),
	}, nil
}
