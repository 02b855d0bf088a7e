package idempotency

import (
	"context"
	"time"
)

// Cache 快速层接口（建议层，TTL 有界）
// 缓存条目被驱逐绝不会导致重复副作用：持久层才是权威判定。
// 快速层的任何错误都只降级性能，不阻断处理。
type Cache interface {
	// GetProcessed 检查幂等键是否在快速层标记为已处理
	GetProcessed(ctx context.Context, key string) (bool, error)

	// SetProcessed 标记幂等键为已处理（带 TTL）
	SetProcessed(ctx context.Context, key string, ttl time.Duration) error

	// Reserve 原子抢占幂等键（条件写，短 TTL）
	// 用于关闭两次并发投递同时通过 isProcessed 检查的竞争窗口
	// 返回：false 表示已被其他投递预留
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release 释放预留（处理失败时调用；不调用则靠 TTL 过期兜底）
	Release(ctx context.Context, key string) error
}
