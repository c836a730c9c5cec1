package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in redis, relying on key expiry for the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore parses a redis:// URL and creates a store on it.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Ping checks that the redis server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Issue stores a new session for userID with the store TTL as key expiry.
func (s *RedisStore) Issue(ctx context.Context, userID int64) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKey(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session for user %d: %w", userID, err)
	}
	return token, nil
}

// Validate returns the user bound to a live session key.
func (s *RedisStore) Validate(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	val, err := s.client.Get(ctx, redisKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to validate session: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session value %q: %w", val, err)
	}
	return userID, true, nil
}

// Revoke deletes the session key, if any.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: redis drops expired keys on its own.
func (s *RedisStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func redisKey(token string) string {
	return redisKeyPrefix + HashToken(token)
}
