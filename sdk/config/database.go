package config

// Database 数据库配置
// 幂等记录表与saga实例表共用一个连接
type Database struct {
	Driver          string `mapstructure:"driver"`
	Source          string `mapstructure:"source"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifeTime int    `mapstructure:"connMaxLifeTime"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
}

var DatabaseConfig = new(Database)
