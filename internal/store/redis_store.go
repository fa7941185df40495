package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisStore) IsInvoked(ctx context.Context, reflexID string) (bool, error) {
	count, err := r.client.Exists(ctx, "invoked:"+reflexID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RedisStore) MarkInvoked(ctx context.Context, reflexID string, ttl time.Duration) error {
	return r.client.Set(ctx, "invoked:"+reflexID, "1", ttl).Err()
}

func (r *RedisStore) SetStage(ctx context.Context, reflexID, stage string, ttl time.Duration) error {
	return r.client.Set(ctx, "stage:"+reflexID, stage, ttl).Err()
}

func (r *RedisStore) GetStage(ctx context.Context, reflexID string) (string, error) {
	result, err := r.client.Get(ctx, "stage:"+reflexID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (r *RedisStore) GetSessionValue(ctx context.Context, connectionID, key string) (string, error) {
	result, err := r.client.HGet(ctx, "session:"+connectionID, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (r *RedisStore) SetSessionValue(ctx context.Context, connectionID, key, value string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, "session:"+connectionID, key, value)
	pipe.Expire(ctx, "session:"+connectionID, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}
