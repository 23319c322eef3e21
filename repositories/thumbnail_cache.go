package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisThumbnailCache struct {
	redis *redis.Client
}

func NewRedisThumbnailCache(redisClient *redis.Client) *RedisThumbnailCache {
	return &RedisThumbnailCache{redis: redisClient}
}

func thumbnailKey(key string) string {
	return fmt.Sprintf("thumb:%s", key)
}

func (c *RedisThumbnailCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.redis.Get(ctx, thumbnailKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisThumbnailCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, thumbnailKey(key), data, ttl).Err()
}

type NoopThumbnailCache struct{}

func (NoopThumbnailCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopThumbnailCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
