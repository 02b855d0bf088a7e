package resilience

import (
	"context"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultCallTimeout  = 5 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 200 * time.Millisecond
)

// Call 一次出站调用
type Call func(ctx context.Context) error

// Protector 出站调用保护层
// 闸门顺序固定：限流 -> 熔断 -> 带超时的调用 -> 瞬时故障本地重试
//
// 错误分类（faults 包）决定记账方式：
// - 瞬时基础设施故障：计入熔断统计，按策略重试
// - 业务规则拒绝：目的地有响应，记为熔断成功，立即上抛，不重试
// - ErrRateLimited / ErrCircuitOpen：直接上抛，不触达目的地
type Protector struct {
	breaker *CircuitBreaker
	limiter *RateLimiter

	callTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration

	logger *zap.Logger
}

// NewProtector 创建出站调用保护层
// name 标识目的地，每个目的地一个 Protector（熔断按目的地统计）
func NewProtector(name string, cfg config.ResilienceConfig) *Protector {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	return &Protector{
		breaker:      NewCircuitBreaker(name, cfg.Breaker),
		limiter:      NewRateLimiter(cfg.RateLimit),
		callTimeout:  cfg.CallTimeout,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger.Logger,
	}
}

// Breaker 暴露底层熔断器（状态观测）
func (p *Protector) Breaker() *CircuitBreaker {
	return p.breaker
}

// Execute 执行一次受保护的出站调用
// 瞬时故障在本地重试 maxRetries 次后上抛；业务拒绝立即上抛
func (p *Protector) Execute(ctx context.Context, call Call) error {
	return p.ExecuteWith(ctx, call, p.callTimeout, p.maxRetries)
}

// ExecuteWith 以调用方指定的超时与重试预算执行（saga 步骤按步配置使用）
func (p *Protector) ExecuteWith(ctx context.Context, call Call, timeout time.Duration, maxRetries int) error {
	if timeout <= 0 {
		timeout = p.callTimeout
	}
	if maxRetries < 0 {
		maxRetries = p.maxRetries
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// 限流是独立闸门，先于熔断检查
		if err := p.limiter.Allow(); err != nil {
			return err
		}
		if err := p.breaker.Allow(); err != nil {
			return err
		}

		err := p.doCall(ctx, call, timeout)
		if err == nil {
			p.breaker.RecordSuccess()
			return nil
		}

		if faults.IsBusiness(err) {
			// 目的地有响应，不是不可用的证据
			p.breaker.RecordSuccess()
			return err
		}

		// 超时与连接类故障按瞬时故障记账
		p.breaker.RecordFailure()
		lastErr = err

		p.logger.Warn("Protected call failed, will retry if budget remains",
			zap.Int("attempt", attempt+1),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
	}

	return lastErr
}

// doCall 带超时执行调用，超时归一化为瞬时故障
func (p *Protector) doCall(ctx context.Context, call Call, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := call(callCtx)
	if err == nil {
		return nil
	}
	if callCtx.Err() == context.DeadlineExceeded && !faults.IsBusiness(err) {
		return faults.Transientf("call timed out after %v: %w", timeout, err)
	}
	return err
}
