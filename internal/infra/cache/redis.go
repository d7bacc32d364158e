package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// TryAcquire ставит ключ через SETNX. false — ключ уже занят.
func (c *RedisCache) TryAcquire(key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(context.Background(), key, "1", ttl).Result()
}

// Release освобождает ключ.
func (c *RedisCache) Release(key string) error {
	return c.client.Del(context.Background(), key).Err()
}

// Set задаёт значение.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.client.Set(context.Background(), key, value, ttl).Err()
}

// Get возвращает значение. Отсутствие ключа — не ошибка, возвращается nil.
func (c *RedisCache) Get(key string) ([]byte, error) {
	val, err := c.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}
