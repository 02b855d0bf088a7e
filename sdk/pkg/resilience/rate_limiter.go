package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited 限流闸门拒绝调用
// 与熔断（ErrCircuitOpen）是两种独立的拒绝，调用方可以区分处理
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter 流量控制器
// 令牌桶实现，作为独立闸门应用在熔断检查之前
type RateLimiter struct {
	limiter   *rate.Limiter
	burstSize int
	rateLimit rate.Limit
	enabled   bool
	logger    *zap.Logger
}

// NewRateLimiter 创建流量控制器
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return &RateLimiter{
			enabled: false,
			logger:  logger.Logger,
		}
	}

	rateLimit := rate.Limit(cfg.RatePerSecond)
	limiter := rate.NewLimiter(rateLimit, cfg.BurstSize)

	return &RateLimiter{
		limiter:   limiter,
		burstSize: cfg.BurstSize,
		rateLimit: rateLimit,
		enabled:   true,
		logger:    logger.Logger,
	}
}

// Allow 非阻塞检查，超限返回 ErrRateLimited
func (rl *RateLimiter) Allow() error {
	if !rl.enabled {
		return nil
	}
	if !rl.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

// Wait 等待令牌，实现背压机制（分发器入站侧使用）
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.enabled {
		return nil // 未启用流量控制，直接通过
	}

	start := time.Now()
	if err := rl.limiter.Wait(ctx); err != nil {
		rl.logger.Error("Rate limiter wait failed", zap.Error(err))
		return err
	}

	waitTime := time.Since(start)
	if waitTime > 100*time.Millisecond {
		rl.logger.Warn("Rate limiter caused significant delay",
			zap.Duration("waitTime", waitTime),
			zap.Float64("rateLimit", float64(rl.rateLimit)),
			zap.Int("burstSize", rl.burstSize))
	}

	return nil
}

// SetLimit 动态调整限流参数
func (rl *RateLimiter) SetLimit(ratePerSecond float64) {
	if !rl.enabled {
		return
	}

	newLimit := rate.Limit(ratePerSecond)
	rl.limiter.SetLimit(newLimit)
	rl.rateLimit = newLimit

	rl.logger.Info("Rate limit updated",
		zap.Float64("newRateLimit", float64(newLimit)),
		zap.Int("burstSize", rl.burstSize))
}

// RateLimiterStats 流量控制统计信息
type RateLimiterStats struct {
	Enabled         bool    `json:"enabled"`
	RateLimit       float64 `json:"rateLimit"`
	BurstSize       int     `json:"burstSize"`
	TokensAvailable float64 `json:"tokensAvailable"`
}

// GetStats 获取流量控制统计信息
func (rl *RateLimiter) GetStats() *RateLimiterStats {
	if !rl.enabled {
		return &RateLimiterStats{Enabled: false}
	}

	return &RateLimiterStats{
		Enabled:         true,
		RateLimit:       float64(rl.rateLimit),
		BurstSize:       rl.burstSize,
		TokensAvailable: rl.limiter.Tokens(),
	}
}
