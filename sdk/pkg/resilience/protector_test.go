package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
)

func testResilienceConfig() config.ResilienceConfig {
	return config.ResilienceConfig{
		Breaker: config.BreakerConfig{
			FailureRateThreshold: 0.5,
			MinimumSamples:       4,
			WindowSize:           4,
			OpenDuration:         50 * time.Millisecond,
			TrialCalls:           1,
		},
		CallTimeout:  time.Second,
		MaxRetries:   0,
		RetryBackoff: time.Millisecond,
	}
}

// TestProtector_Success 测试成功调用
func TestProtector_Success(t *testing.T) {
	p := NewProtector("payment", testResilienceConfig())

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, p.Breaker().State())
}

// TestProtector_RetriesTransientFailure 测试瞬时故障的本地重试
func TestProtector_RetriesTransientFailure(t *testing.T) {
	cfg := testResilienceConfig()
	cfg.MaxRetries = 2
	p := NewProtector("payment", cfg)

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return faults.Transientf("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestProtector_BusinessErrorNotRetried 测试业务拒绝不重试也不计入熔断失败
func TestProtector_BusinessErrorNotRetried(t *testing.T) {
	cfg := testResilienceConfig()
	cfg.MaxRetries = 3
	p := NewProtector("payment", cfg)

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return faults.Businessf("insufficient funds")
	})

	require.Error(t, err)
	assert.True(t, faults.IsBusiness(err))
	assert.Equal(t, 1, calls)
	// 业务拒绝说明目的地有响应，熔断器保持 Closed
	assert.Equal(t, StateClosed, p.Breaker().State())
}

// TestProtector_BreakerOpensAndFastFails 测试连续失败触发熔断并快速拒绝
func TestProtector_BreakerOpensAndFastFails(t *testing.T) {
	p := NewProtector("payment", testResilienceConfig())

	for i := 0; i < 4; i++ {
		err := p.Execute(context.Background(), func(ctx context.Context) error {
			return faults.Transientf("connection refused")
		})
		require.Error(t, err)
	}
	require.Equal(t, StateOpen, p.Breaker().State())

	// 熔断后调用不再触达处理函数
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

// TestProtector_TimeoutBecomesTransient 测试调用超时归一化为瞬时故障
func TestProtector_TimeoutBecomesTransient(t *testing.T) {
	cfg := testResilienceConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	p := NewProtector("payment", cfg)

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, faults.IsTransient(err))
}

// TestProtector_ExecuteWithOverrides 测试按调用覆盖超时与重试预算
func TestProtector_ExecuteWithOverrides(t *testing.T) {
	cfg := testResilienceConfig()
	cfg.MaxRetries = 0
	p := NewProtector("payment", cfg)

	calls := 0
	err := p.ExecuteWith(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 4 {
			return faults.Transientf("flaky")
		}
		return nil
	}, time.Second, 3)

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

// TestRateLimiter_RejectsWhenExhausted 测试令牌耗尽后非阻塞拒绝
func TestRateLimiter_RejectsWhenExhausted(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		Enabled:       true,
		RatePerSecond: 1,
		BurstSize:     2,
	})

	require.NoError(t, rl.Allow())
	require.NoError(t, rl.Allow())
	assert.ErrorIs(t, rl.Allow(), ErrRateLimited)
}

// TestRateLimiter_Disabled 测试未启用时直接放行
func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: false})

	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Allow())
	}
	assert.NoError(t, rl.Wait(context.Background()))
}

// TestProtector_RateLimitDistinctFromCircuitOpen 测试限流拒绝与熔断拒绝可区分
func TestProtector_RateLimitDistinctFromCircuitOpen(t *testing.T) {
	cfg := testResilienceConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:       true,
		RatePerSecond: 1,
		BurstSize:     1,
	}
	p := NewProtector("payment", cfg)

	require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	// 限流拒绝不计入熔断统计
	assert.Equal(t, StateClosed, p.Breaker().State())
}
