package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrQueueFull = errors.New("notification queue is full")

type RedisNotificationQueue struct {
	redis *redis.Client
	key   string
}

func NewRedisNotificationQueue(redisClient *redis.Client, key string) *RedisNotificationQueue {
	return &RedisNotificationQueue{redis: redisClient, key: key}
}

func (q *RedisNotificationQueue) Push(ctx context.Context, payload []byte) error {
	return q.redis.LPush(ctx, q.key, payload).Err()
}

func (q *RedisNotificationQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	values, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPOP replies with [key, value]
	if len(values) < 2 {
		return nil, nil
	}
	return []byte(values[1]), nil
}

// MemoryNotificationQueue is the single process fallback when redis is off.
type MemoryNotificationQueue struct {
	ch chan []byte
}

func NewMemoryNotificationQueue(size int) *MemoryNotificationQueue {
	return &MemoryNotificationQueue{ch: make(chan []byte, size)}
}

func (q *MemoryNotificationQueue) Push(_ context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryNotificationQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-q.ch:
		return payload, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryNotificationQueue) Len() int {
	return len(q.ch)
}
