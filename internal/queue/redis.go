package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list key used when none is configured.
const DefaultRedisKey = "sentinel-queue"

// redisPollTimeout bounds each BRPOP so that Dequeue notices cancellation.
const redisPollTimeout = time.Second

// RedisBackend stores payloads as JSON in a Redis list.
// Producers LPUSH and consumers BRPOP, so each payload is popped by exactly
// one consumer and the list survives process restarts.
type RedisBackend struct {
	client *redis.Client
	key    string
	logger *slog.Logger
	closed atomic.Bool
}

// Ensure RedisBackend implements Backend
var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, key string, logger *slog.Logger) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBackend{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_queue", "key", key),
	}
}

// OpenRedisClient parses url, connects and pings the server. The client is
// shared by the queue and the event relay.
func OpenRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %w", ErrBackendUnavailable, err)
	}
	return client, nil
}

// Enqueue pushes the payload onto the head of the list.
func (q *RedisBackend) Enqueue(ctx context.Context, p Payload) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("%w: lpush: %w", ErrBackendUnavailable, err)
	}
	q.logger.Debug("job enqueued", "job_id", p.JobID)
	return nil
}

// Dequeue pops from the tail of the list, polling until ctx is done.
// Malformed entries are logged and skipped.
func (q *RedisBackend) Dequeue(ctx context.Context) (Payload, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		if q.closed.Load() {
			return Payload{}, ErrQueueClosed
		}

		res, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Payload{}, ctxErr
			}
			if errors.Is(err, redis.ErrClosed) {
				return Payload{}, ErrQueueClosed
			}
			return Payload{}, fmt.Errorf("%w: brpop: %w", ErrBackendUnavailable, err)
		}

		// BRPOP replies with [key, value].
		if len(res) != 2 {
			q.logger.Warn("unexpected brpop reply", "reply_len", len(res))
			continue
		}

		var p Payload
		if err := json.Unmarshal([]byte(res[1]), &p); err != nil {
			q.logger.Error("dropping malformed payload", "error", err)
			continue
		}
		return p, nil
	}
}

// Close closes the underlying client.
func (q *RedisBackend) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}
