package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL   = 24 * time.Hour
	DefaultReserveTTL = 30 * time.Second
)

// Guard 双层幂等守卫
//
// 快速层（Redis/内存，TTL 有界）只是建议层：命中省一次持久层查询，
// 驱逐绝不导致重复副作用。持久层（关系库）是权威判定。
//
// 使用顺序（由分发器驱动）：
//  1. IsProcessed —— 已处理则直接确认，不调用处理器
//  2. Reserve —— 抢占键，关闭并发重投递的竞争窗口
//  3. 处理器执行成功后 MarkProcessed（先持久层，后刷新快速层）
//  4. 处理器失败则 Release（或等预留 TTL 过期）
type Guard struct {
	store Store
	cache Cache

	cacheTTL   time.Duration
	reserveTTL time.Duration

	logger *zap.Logger
}

// NewGuard 创建幂等守卫
func NewGuard(store Store, cache Cache, cfg *config.IdempotencyConfig) *Guard {
	g := &Guard{
		store:      store,
		cache:      cache,
		cacheTTL:   DefaultCacheTTL,
		reserveTTL: DefaultReserveTTL,
		logger:     logger.Logger,
	}
	if cfg != nil {
		if cfg.CacheTTL > 0 {
			g.cacheTTL = cfg.CacheTTL
		}
		if cfg.ReserveTTL > 0 {
			g.reserveTTL = cfg.ReserveTTL
		}
	}
	return g
}

// IsProcessed 检查 (事件, 消费方) 是否已处理
// 先查快速层；未命中查持久层；持久层命中时回填快速层（自愈）。
// 快速层错误只降级性能；持久层错误上抛（该事件会被重投递）。
func (g *Guard) IsProcessed(ctx context.Context, eventID, service string) (bool, error) {
	key := Key(eventID, service)

	cached, err := g.cache.GetProcessed(ctx, key)
	if err != nil {
		g.logger.Warn("Idempotency cache read failed, falling through to durable store",
			zap.String("key", key), zap.Error(err))
	} else if cached {
		return true, nil
	}

	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("durable idempotency check failed for key %s: %w", key, err)
	}
	if !exists {
		return false, nil
	}

	// 自愈：持久层命中，回填快速层
	if err := g.cache.SetProcessed(ctx, key, g.cacheTTL); err != nil {
		g.logger.Warn("Idempotency cache backfill failed",
			zap.String("key", key), zap.Error(err))
	}
	return true, nil
}

// Reserve 抢占幂等键
// 返回 false 表示键已被并发投递预留或已处理，本次投递应放弃。
// 已处理判定不依赖快速层：快速层未命中时以持久层为准（回填自愈）。
// 预留本身落在快速层，故障时放行（只降级去重性能，持久层仍然权威）。
func (g *Guard) Reserve(ctx context.Context, eventID, service string) (bool, error) {
	key := Key(eventID, service)

	cached, err := g.cache.GetProcessed(ctx, key)
	if err == nil && cached {
		return false, nil
	}

	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("durable idempotency check failed for key %s: %w", key, err)
	}
	if exists {
		if err := g.cache.SetProcessed(ctx, key, g.cacheTTL); err != nil {
			g.logger.Warn("Idempotency cache backfill failed",
				zap.String("key", key), zap.Error(err))
		}
		return false, nil
	}

	ok, err := g.cache.Reserve(ctx, key, g.reserveTTL)
	if err != nil {
		g.logger.Warn("Reservation against fast tier failed, allowing delivery to proceed",
			zap.String("key", key), zap.Error(err))
		return true, nil
	}
	return ok, nil
}

// MarkProcessed 标记处理完成
// 只在处理器成功后调用。先写持久层（权威，幂等写），再刷新快速层。
// 持久层写入失败时上抛：处理器效果视为未确认，事件会被重投递。
func (g *Guard) MarkProcessed(ctx context.Context, eventID, eventType, service string, payload []byte) error {
	key := Key(eventID, service)

	record := &ProcessedRecord{
		IdempotencyKey: key,
		EventType:      eventType,
		ServiceName:    service,
		ProcessedAt:    time.Now(),
		PayloadDigest:  Digest(payload),
		EventData:      jxtjson.RawMessage(payload),
	}

	if err := g.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("durable idempotency write failed for key %s: %w", key, err)
	}

	// 快速层刷新失败只损失性能，持久层已是事实
	if err := g.cache.SetProcessed(ctx, key, g.cacheTTL); err != nil {
		g.logger.Warn("Idempotency cache refresh failed after durable write",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Release 释放预留（处理器失败后调用，best-effort，TTL 兜底）
func (g *Guard) Release(ctx context.Context, eventID, service string) {
	key := Key(eventID, service)
	if err := g.cache.Release(ctx, key); err != nil {
		g.logger.Warn("Reservation release failed, TTL will expire it",
			zap.String("key", key), zap.Error(err))
	}
}
