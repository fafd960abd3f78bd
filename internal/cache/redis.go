package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dppapi/internal/config"
	"dppapi/internal/model"
)

// RedisCache implements StatusCache on a Redis instance.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies connectivity.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSec) * time.Second,
	}, nil
}

var _ StatusCache = (*RedisCache)(nil)

func aggregateKey(entityID string) string {
	return "dpp:aggregate:" + entityID
}

// GetAggregate returns the cached status; a miss is not an error.
func (r *RedisCache) GetAggregate(ctx context.Context, entityID string) (model.AggregateStatus, bool, error) {
	val, err := r.client.Get(ctx, aggregateKey(entityID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.AggregateStatus(val), true, nil
}

// SetAggregate stores the status under the configured TTL.
func (r *RedisCache) SetAggregate(ctx context.Context, entityID string, status model.AggregateStatus) error {
	return r.client.Set(ctx, aggregateKey(entityID), string(status), r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
