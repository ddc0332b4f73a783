package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis appends records to a Redis list with RPUSH.
type Redis struct {
	redis  *redis.Client
	key    string
	mu     sync.Mutex
	closed bool
}

// NewRedis creates a Redis list sink. The client stays owned by the caller.
func NewRedis(redisClient *redis.Client, key Key) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{
		redis: redisClient,
		key:   key.String(),
	}
}

// ListKey returns the Redis key records are pushed to.
func (r *Redis) ListKey() string {
	return r.key
}

// Write pushes the canonical encoding of v onto the list tail.
func (r *Redis) Write(ctx context.Context, v any) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := Encode(v)
	if err != nil {
		writeErrors.WithLabelValues("redis").Inc()
		return err
	}

	if err := r.redis.RPush(ctx, r.key, data).Err(); err != nil {
		writeErrors.WithLabelValues("redis").Inc()
		return fmt.Errorf("redis rpush: %w", err)
	}

	recordsWritten.WithLabelValues("redis").Inc()
	return nil
}

// ReadAll returns every record stored under the list key, oldest first.
func (r *Redis) ReadAll(ctx context.Context) ([]json.RawMessage, error) {
	vals, err := r.redis.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		out[i] = json.RawMessage(v)
	}
	return out, nil
}

// Close stops further writes. The Redis client is not closed.
func (r *Redis) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
