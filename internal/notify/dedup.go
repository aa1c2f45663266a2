package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper 记录“这条通知最近发过”，避免任务重跑时重复轰炸用户。
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

const dedupPrefix = "service-reminder:notify:"

// RedisDeduper 基于 Redis 键存在性的去重，键带 TTL 自动过期。
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return d.client.Set(ctx, dedupPrefix+key, 1, ttl).Err()
}
