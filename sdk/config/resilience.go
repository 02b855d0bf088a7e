package config

import (
	"fmt"
	"time"
)

// ResilienceConfig 出站调用保护配置（熔断 + 限流 + 重试）
type ResilienceConfig struct {
	Breaker BreakerConfig `mapstructure:"breaker"`
	// CallTimeout 单次出站调用的超时
	CallTimeout time.Duration `mapstructure:"callTimeout"`
	// MaxRetries 瞬时故障的本地重试上限
	MaxRetries int `mapstructure:"maxRetries"`
	// RetryBackoff 重试之间的固定间隔
	RetryBackoff time.Duration `mapstructure:"retryBackoff"`
	// RateLimit 目的地限流（独立于熔断器的闸门）
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// FailureRateThreshold 触发熔断的失败率阈值（0~1）
	FailureRateThreshold float64 `mapstructure:"failureRateThreshold"`
	// MinimumSamples 统计窗口生效的最小样本数
	MinimumSamples int `mapstructure:"minimumSamples"`
	// WindowSize 滑动计数窗口的容量
	WindowSize int `mapstructure:"windowSize"`
	// OpenDuration Open 状态持续时间（之后进入 HalfOpen）
	OpenDuration time.Duration `mapstructure:"openDuration"`
	// TrialCalls HalfOpen 状态允许的试探调用数
	TrialCalls int `mapstructure:"trialCalls"`
}

// Validate 校验配置合法性，零值字段使用组件默认值
func (c *ResilienceConfig) Validate() error {
	if c.CallTimeout < 0 {
		return fmt.Errorf("callTimeout cannot be negative, got %v", c.CallTimeout)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 100 {
		return fmt.Errorf("maxRetries must be between 0 and 100, got %d", c.MaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retryBackoff cannot be negative, got %v", c.RetryBackoff)
	}
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	return c.RateLimit.Validate()
}

// Validate 校验熔断器配置
func (c *BreakerConfig) Validate() error {
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("failureRateThreshold must be between 0 and 1, got %f", c.FailureRateThreshold)
	}
	if c.MinimumSamples < 0 {
		return fmt.Errorf("minimumSamples cannot be negative, got %d", c.MinimumSamples)
	}
	if c.WindowSize < 0 || c.WindowSize > 10000 {
		return fmt.Errorf("windowSize must be between 0 and 10000, got %d", c.WindowSize)
	}
	if c.WindowSize > 0 && c.MinimumSamples > c.WindowSize {
		return fmt.Errorf("minimumSamples (%d) cannot exceed windowSize (%d)", c.MinimumSamples, c.WindowSize)
	}
	if c.OpenDuration < 0 {
		return fmt.Errorf("openDuration cannot be negative, got %v", c.OpenDuration)
	}
	if c.TrialCalls < 0 || c.TrialCalls > 100 {
		return fmt.Errorf("trialCalls must be between 0 and 100, got %d", c.TrialCalls)
	}
	return nil
}

var ResilienceConfigInstance = new(ResilienceConfig)
