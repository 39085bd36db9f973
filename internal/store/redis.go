package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jobtalk/pkg/interfaces"
)

// RedisStore persists room selection in Redis, for deployments where the
// engine runs behind a shared edge rather than on a single host.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(url string, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "store").Str("driver", DriverRedis).Logger(),
	}, nil
}

func selectionKey(sessionKey, role string) string {
	return "jobtalk:selection:" + sessionKey + ":" + role
}

// SaveSelection stores the selected room for a (session, role) pair.
func (s *RedisStore) SaveSelection(ctx context.Context, sessionKey, role, roomID string) error {
	if err := s.client.Set(ctx, selectionKey(sessionKey, role), roomID, 0).Err(); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// LoadSelection returns interfaces.ErrNoSelection when nothing is persisted.
func (s *RedisStore) LoadSelection(ctx context.Context, sessionKey, role string) (string, error) {
	roomID, err := s.client.Get(ctx, selectionKey(sessionKey, role)).Result()
	if errors.Is(err, redis.Nil) {
		return "", interfaces.ErrNoSelection
	}
	if err != nil {
		return "", fmt.Errorf("load selection: %w", err)
	}
	return roomID, nil
}

// ClearSelection removes any persisted selection. Idempotent.
func (s *RedisStore) ClearSelection(ctx context.Context, sessionKey, role string) error {
	if err := s.client.Del(ctx, selectionKey(sessionKey, role)).Err(); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
