package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// redisStateKey holds the whole state document, mirroring the single-document
// layout of the file store so external tooling sees one JSON blob either way.
const redisStateKey = "relaymux:backend-state"

// RedisStore keeps the state document under a single Redis key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis state store: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Read loads the document; a missing or unparseable value yields empty state.
func (r *RedisStore) Read(ctx context.Context) (State, error) {
	val, err := r.client.Get(ctx, redisStateKey).Result()
	if err != nil {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return State{}, nil
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// Write replaces the document. Records are kept without TTL; expiry is the
// scheduler's job, not Redis's.
func (r *RedisStore) Write(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := r.client.Set(ctx, redisStateKey, data, 0).Err(); err != nil {
		return fmt.Errorf("writing state to redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }
