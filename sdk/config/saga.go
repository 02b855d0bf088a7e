package config

import (
	"fmt"
	"time"
)

// SagaConfig saga 编排器配置
type SagaConfig struct {
	// StepTimeout 单个步骤（正向或补偿）的默认超时
	StepTimeout time.Duration `mapstructure:"stepTimeout"`
	// StepMaxRetries 单个步骤的默认重试上限
	StepMaxRetries int `mapstructure:"stepMaxRetries"`
	// RetryBackoff 步骤重试之间的固定间隔
	RetryBackoff time.Duration `mapstructure:"retryBackoff"`
	// RecoveryInterval 崩溃恢复扫描间隔（0 则不启动后台恢复）
	RecoveryInterval time.Duration `mapstructure:"recoveryInterval"`
	// RecoveryBatchSize 每次恢复扫描处理的实例数量上限
	RecoveryBatchSize int `mapstructure:"recoveryBatchSize"`
}

// Validate 校验配置合法性，零值字段使用组件默认值
func (c *SagaConfig) Validate() error {
	if c.StepTimeout < 0 {
		return fmt.Errorf("stepTimeout cannot be negative, got %v", c.StepTimeout)
	}
	if c.StepMaxRetries < 0 || c.StepMaxRetries > 100 {
		return fmt.Errorf("stepMaxRetries must be between 0 and 100, got %d", c.StepMaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retryBackoff cannot be negative, got %v", c.RetryBackoff)
	}
	if c.RecoveryInterval < 0 {
		return fmt.Errorf("recoveryInterval cannot be negative, got %v", c.RecoveryInterval)
	}
	if c.RecoveryBatchSize < 0 || c.RecoveryBatchSize > 10000 {
		return fmt.Errorf("recoveryBatchSize must be between 0 and 10000, got %d", c.RecoveryBatchSize)
	}
	return nil
}

var SagaConfigInstance = new(SagaConfig)
