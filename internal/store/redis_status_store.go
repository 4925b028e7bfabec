package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"worklist-sentinel/internal/models"
)

// LatestRunID is the pseudo run id that resolves to the most recently updated run.
const LatestRunID = "latest"

// StatusClient is the subset of the Redis client the status store needs.
type StatusClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Close() error
}

// RedisStatusStore stores run status in Redis.
type RedisStatusStore struct {
	client StatusClient
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initializes a Redis-backed StatusStore.
func NewRedisStatusStore(client StatusClient, prefix string, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// SetStatus writes the status record and points the latest alias at it.
func (s *RedisStatusStore) SetStatus(ctx context.Context, status models.RunStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+status.RunID, payload, s.ttl)
		pipe.Set(ctx, s.prefix+LatestRunID, status.RunID, s.ttl)
		return nil
	})
	return err
}

// GetStatus reads the status record from Redis. runID may be LatestRunID.
func (s *RedisStatusStore) GetStatus(ctx context.Context, runID string) (models.RunStatus, bool, error) {
	if runID == LatestRunID {
		id, err := s.client.Get(ctx, s.prefix+LatestRunID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.RunStatus{}, false, nil
			}
			return models.RunStatus{}, false, err
		}
		runID = id
	}

	val, err := s.client.Get(ctx, s.prefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RunStatus{}, false, nil
		}
		return models.RunStatus{}, false, err
	}

	var status models.RunStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return models.RunStatus{}, false, err
	}

	return status, true, nil
}
