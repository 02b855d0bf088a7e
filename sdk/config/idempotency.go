package config

import (
	"fmt"
	"time"
)

// IdempotencyConfig 幂等守卫配置
type IdempotencyConfig struct {
	// CacheTTL 快速层缓存条目的存活时间
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
	// ReserveTTL 预留锁的存活时间（处理中的事件重投递保护窗口）
	ReserveTTL time.Duration `mapstructure:"reserveTTL"`
	// Retention 持久层记录保留窗口（超过后由janitor清理）
	Retention time.Duration `mapstructure:"retention"`
	// JanitorSchedule janitor 的 cron 表达式（空则不启动）
	JanitorSchedule string `mapstructure:"janitorSchedule"`
	// KeyPrefix 快速层键前缀
	KeyPrefix string `mapstructure:"keyPrefix"`
}

// IsEnabledJanitor 是否启用保留窗口清理
func (c *IdempotencyConfig) IsEnabledJanitor() bool {
	return c != nil && c.JanitorSchedule != "" && c.Retention > 0
}

// Validate 校验配置合法性
func (c *IdempotencyConfig) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cacheTTL cannot be negative, got %v", c.CacheTTL)
	}
	if c.ReserveTTL < 0 {
		return fmt.Errorf("reserveTTL cannot be negative, got %v", c.ReserveTTL)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention cannot be negative, got %v", c.Retention)
	}
	if c.JanitorSchedule != "" && c.Retention == 0 {
		return fmt.Errorf("janitorSchedule requires a positive retention window")
	}
	return nil
}

var IdempotencyConfigInstance = new(IdempotencyConfig)
