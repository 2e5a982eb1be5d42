package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// RedisCache stores JSON values in Redis.
type RedisCache struct {
	client *redis.Client
}

var _ core.Cache = (*RedisCache)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(c.client.Ping(ctx).Err(), "pinging redis")
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	str, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return core.ErrCacheMiss
		}
		return errors.Wrapf(err, "getting %s", key)
	}
	return errors.Wrapf(json.Unmarshal([]byte(str), dest), "decoding %s", key)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, key, b, ttl).Err(), "setting %s", key)
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	return n, errors.Wrapf(err, "incrementing %s", key)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "deleting keys")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
