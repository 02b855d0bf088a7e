package config

import (
	"time"

	"github.com/go-redis/redis/v9"
)

// RedisConnect Redis连接配置（幂等快速层使用）
type RedisConnect struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

var RedisConfig = new(RedisConnect)

// GetRedisOptions 转换为 go-redis 客户端选项
func (e *RedisConnect) GetRedisOptions() (*redis.Options, error) {
	return &redis.Options{
		Addr:         e.Addr,
		Password:     e.Password,
		DB:           e.DB,
		PoolSize:     e.PoolSize,
		DialTimeout:  e.DialTimeout,
		ReadTimeout:  e.ReadTimeout,
		WriteTimeout: e.WriteTimeout,
	}, nil
}

var _redis *redis.Client

// GetRedisClient 获取共享的 redis 客户端
func GetRedisClient() *redis.Client {
	return _redis
}

// SetRedisClient 注入 redis 客户端（测试或外部复用连接时使用）
func SetRedisClient(c *redis.Client) {
	_redis = c
}
