package config

import (
	"fmt"
	"time"
)

// DispatcherConfig 事件分发器配置
type DispatcherConfig struct {
	// WorkerCount Keyed-Worker 池的 worker 数量
	WorkerCount int `mapstructure:"workerCount"`
	// QueueSize 每个 worker 的有界队列容量
	QueueSize int `mapstructure:"queueSize"`
	// WaitTimeout 队列满时入队的最长等待时间
	WaitTimeout time.Duration `mapstructure:"waitTimeout"`
	// MaxDeliveryAttempts 单条消息的最大投递次数（超过后进入死信）
	MaxDeliveryAttempts int `mapstructure:"maxDeliveryAttempts"`
	// RateLimit 入站处理限流
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig 流量控制配置
type RateLimitConfig struct {
	Enabled       bool    `mapstructure:"enabled"`       // 是否启用流量控制
	RatePerSecond float64 `mapstructure:"ratePerSecond"` // 每秒允许的请求数
	BurstSize     int     `mapstructure:"burstSize"`     // 突发容量
}

// Validate 校验配置合法性，零值字段使用组件默认值
func (c *DispatcherConfig) Validate() error {
	if c.WorkerCount < 0 || c.WorkerCount > 4096 {
		return fmt.Errorf("workerCount must be between 0 and 4096, got %d", c.WorkerCount)
	}
	if c.QueueSize < 0 || c.QueueSize > 65536 {
		return fmt.Errorf("queueSize must be between 0 and 65536, got %d", c.QueueSize)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("waitTimeout cannot be negative, got %v", c.WaitTimeout)
	}
	if c.MaxDeliveryAttempts < 0 || c.MaxDeliveryAttempts > 100 {
		return fmt.Errorf("maxDeliveryAttempts must be between 0 and 100, got %d", c.MaxDeliveryAttempts)
	}
	return c.RateLimit.Validate()
}

// Validate 校验流量控制配置
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("ratePerSecond must be positive when rate limiting is enabled, got %f", c.RatePerSecond)
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burstSize must be positive when rate limiting is enabled, got %d", c.BurstSize)
	}
	return nil
}

var DispatcherConfigInstance = new(DispatcherConfig)
