// Package tokens handles single-use pipeline tokens: retrieval from
// Redis and decoding of the signed pipeline payload.
package tokens

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/logger"
)

// Store fetches single-use pipeline tokens from Redis. A token is
// deleted atomically on retrieval, so it can never be replayed.
type Store struct {
	rdb *redis.Client
	log *logger.Logger
}

// StoreConfig configures the Redis connection.
type StoreConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewStore creates a token store over a Redis connection.
func NewStore(cfg StoreConfig, log *logger.Logger) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{rdb: rdb, log: log.WithComponent("tokens")}
}

// NewStoreWithClient wraps an existing Redis client. Used in tests.
func NewStoreWithClient(rdb *redis.Client, log *logger.Logger) *Store {
	return &Store{rdb: rdb, log: log.WithComponent("tokens")}
}

// Fetch retrieves and deletes the payload stored under tokenID. A
// missing or already-consumed token yields NOT_FOUND.
func (s *Store) Fetch(ctx context.Context, tokenID string) (string, error) {
	payload, err := s.rdb.GetDel(ctx, tokenID).Result()
	if err == redis.Nil {
		s.log.Debug("token not found", map[string]interface{}{logger.FieldTokenID: tokenID})
		return "", errors.NotFound("pipeline token", tokenID)
	}
	if err != nil {
		return "", errors.Network("token lookup", fmt.Errorf("redis: %w", err))
	}
	s.log.Debug("token consumed", map[string]interface{}{logger.FieldTokenID: tokenID})
	return payload, nil
}

// Ping verifies Redis reachability for healthchecks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.Network("redis ping", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
