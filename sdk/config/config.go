package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 顶层配置结构
type Config struct {
	Application *Application       `mapstructure:"application"`
	Logger      *Logger            `mapstructure:"logger"`
	Database    *Database          `mapstructure:"database"`
	Redis       *RedisConnect      `mapstructure:"redis"`
	Idempotency *IdempotencyConfig `mapstructure:"idempotency"`
	Dispatcher  *DispatcherConfig  `mapstructure:"dispatcher"`
	Saga        *SagaConfig        `mapstructure:"saga"`
	Resilience  *ResilienceConfig  `mapstructure:"resilience"`
}

var AppConfig = &Config{
	Application: ApplicationConfig,
	Logger:      LoggerConfig,
	Database:    DatabaseConfig,
	Redis:       RedisConfig,
	Idempotency: IdempotencyConfigInstance,
	Dispatcher:  DispatcherConfigInstance,
	Saga:        SagaConfigInstance,
	Resilience:  ResilienceConfigInstance,
}

func Setup(configYml string) error {

	v := viper.New()
	v.SetConfigFile(configYml)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 映射到AppConfig
	if err := v.Unmarshal(AppConfig); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return AppConfig.Validate()
}

// Validate 校验各组件配置
func (c *Config) Validate() error {
	if c.Idempotency != nil {
		if err := c.Idempotency.Validate(); err != nil {
			return fmt.Errorf("idempotency config invalid: %w", err)
		}
	}
	if c.Dispatcher != nil {
		if err := c.Dispatcher.Validate(); err != nil {
			return fmt.Errorf("dispatcher config invalid: %w", err)
		}
	}
	if c.Saga != nil {
		if err := c.Saga.Validate(); err != nil {
			return fmt.Errorf("saga config invalid: %w", err)
		}
	}
	if c.Resilience != nil {
		if err := c.Resilience.Validate(); err != nil {
			return fmt.Errorf("resilience config invalid: %w", err)
		}
	}
	return nil
}
