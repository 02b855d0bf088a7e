package config

// Application 应用基础配置
type Application struct {
	// ServiceName 消费方服务名（参与幂等键的构成）
	ServiceName string `mapstructure:"serviceName"`
	// Mode 运行模式: dev, test, prod
	Mode string `mapstructure:"mode"`
}

var ApplicationConfig = new(Application)
