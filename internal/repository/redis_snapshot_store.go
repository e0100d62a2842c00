package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps the persisted frame cache in a single Redis key.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
}

// RedisSnapshotOptions configures the store connection.
type RedisSnapshotOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisSnapshotStore connects to Redis and verifies it with a ping.
func NewRedisSnapshotStore(opts RedisSnapshotOptions) (*RedisSnapshotStore, error) {
	if opts.Prefix == "" {
		opts.Prefix = "chartpulse"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSnapshotStore{client: client, prefix: opts.Prefix}, nil
}

// GetItem reads a value; the second return reports presence.
func (s *RedisSnapshotStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.wrapKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// SetItem writes a value without expiry; snapshots live until replaced.
func (s *RedisSnapshotStore) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.wrapKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RemoveItem deletes a key. Missing keys are not an error.
func (s *RedisSnapshotStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Unlink(ctx, s.wrapKey(key)).Err(); err != nil {
		return fmt.Errorf("redis unlink: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}

func (s *RedisSnapshotStore) wrapKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}
