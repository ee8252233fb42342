package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"snackstand/backend/internal/domain"
)

const reportKeyPrefix = "pos:report:"

type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection so the change notifier can share
// it instead of dialing twice.
func (c *RedisReportCache) Client() *redis.Client {
	return c.client
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (*domain.ReportSummary, bool, error) {
	val, err := c.client.Get(ctx, reportKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.ReportSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value *domain.ReportSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKeyPrefix+key, payload, ttl).Err()
}

func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, reportKeyPrefix+"*", 64).Iterator()
	keys := make([]string, 0, 8)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
