package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lomami/reconcile/internal/transaction"
)

const redisKeyPrefix = "tx:v1:"

type redisStore struct {
	client *redis.Client
}

// NewRedis configures a Redis-backed store and verifies connectivity.
func NewRedis(ctx context.Context, url string) (Store, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &redisStore{client: client}, nil
}

// NewRedisWithClient wraps an existing client; the caller owns its lifecycle
// only until Close is called here. Used by tests running against miniredis.
func NewRedisWithClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Put(ctx context.Context, tx transaction.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction %d: %w", tx.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(tx.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("persist transaction %d: %w", tx.ID, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id uint32) (transaction.Transaction, error) {
	payload, err := s.client.Get(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return transaction.Transaction{}, ErrNotFound
	}
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("fetch transaction %d: %w", id, err)
	}

	var tx transaction.Transaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		return transaction.Transaction{}, fmt.Errorf("decode transaction %d: %w", id, err)
	}
	return tx, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func redisKey(id uint32) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, id)
}
