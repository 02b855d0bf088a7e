package idempotency

import (
	"context"
	"sync"
	"time"
)

// memoryCache 内存快速层实现（用于测试和开发）
type memoryCache struct {
	mu           sync.Mutex
	processed    map[string]time.Time // key -> 过期时间
	reservations map[string]time.Time // key -> 过期时间
}

// NewMemoryCache 创建内存快速层
func NewMemoryCache() Cache {
	return &memoryCache{
		processed:    make(map[string]time.Time),
		reservations: make(map[string]time.Time),
	}
}

func (c *memoryCache) GetProcessed(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.processed[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(c.processed, key)
		return false, nil
	}
	return true, nil
}

func (c *memoryCache) SetProcessed(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed[key] = time.Now().Add(ttl)
	// 已处理的键不再需要预留
	delete(c.reservations, key)
	return nil
}

func (c *memoryCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expiry, ok := c.reservations[key]; ok && now.Before(expiry) {
		return false, nil
	}
	c.reservations[key] = now.Add(ttl)
	return true, nil
}

func (c *memoryCache) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reservations, key)
	return nil
}

// Purge 清空快速层（测试缓存丢失场景）
func (c *memoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed = make(map[string]time.Time)
	c.reservations = make(map[string]time.Time)
}
