package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v9"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

const (
	processedMarker  = "1"
	DefaultKeyPrefix = "jxt:idem"
)

// redisCache Redis快速层实现
// 已处理标记使用带 TTL 的普通键；预留使用 redislock 的条件写锁，
// 两次并发投递竞争同一键时只有一方能获得锁。
type redisCache struct {
	client    *redis.Client
	locker    *redislock.Client
	keyPrefix string

	mu    sync.Mutex
	locks map[string]*redislock.Lock // 持有中的预留锁

	logger *zap.Logger
}

// NewRedisCache 创建Redis快速层
func NewRedisCache(client *redis.Client, keyPrefix string) Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &redisCache{
		client:    client,
		locker:    redislock.New(client),
		keyPrefix: keyPrefix,
		locks:     make(map[string]*redislock.Lock),
		logger:    logger.Logger,
	}
}

func (c *redisCache) processedKey(key string) string {
	return c.keyPrefix + ":processed:" + key
}

func (c *redisCache) reserveKey(key string) string {
	return c.keyPrefix + ":reserve:" + key
}

func (c *redisCache) GetProcessed(ctx context.Context, key string) (bool, error) {
	_, err := c.client.Get(ctx, c.processedKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *redisCache) SetProcessed(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, c.processedKey(key), processedMarker, ttl).Err()
}

func (c *redisCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lock, err := c.locker.Obtain(ctx, c.reserveKey(key), ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return false, nil
		}
		return false, err
	}

	c.mu.Lock()
	c.locks[key] = lock
	c.mu.Unlock()
	return true, nil
}

func (c *redisCache) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	lock, ok := c.locks[key]
	delete(c.locks, key)
	c.mu.Unlock()

	if !ok {
		// 本实例没有持有该预留，交给 TTL 过期兜底
		return nil
	}

	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		c.logger.Warn("Failed to release reservation lock, TTL will expire it",
			zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
