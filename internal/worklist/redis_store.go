package worklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"worklist-sentinel/internal/models"
)

// KeyValueClient is the subset of the Redis client the store needs.
type KeyValueClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the worklist as a newline-delimited string under a single key.
type RedisStore struct {
	client KeyValueClient
	key    string
}

// NewRedisStore returns a store reading and writing key on the given client.
func NewRedisStore(client KeyValueClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Fetch reads the key. A missing key is an empty worklist, not an error.
func (s *RedisStore) Fetch(ctx context.Context) (models.Worklist, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Worklist{ID: s.key}, nil
		}
		return models.Worklist{}, err
	}
	return models.Worklist{ID: s.key, Tokens: models.ParseTokens(val)}, nil
}

// Persist overwrites the key named by list.ID.
func (s *RedisStore) Persist(ctx context.Context, list models.Worklist) error {
	if list.ID == "" {
		return fmt.Errorf("worklist has no identifier")
	}
	return s.client.Set(ctx, list.ID, models.JoinTokens(list.Tokens), 0).Err()
}
