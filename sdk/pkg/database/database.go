package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	toolsConfig "github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
)

// Setup 建立数据库连接
// 幂等记录表与 saga 实例表共用该连接；SQL 日志按配置接入 zap
func Setup(cfg *toolsConfig.Database) (*gorm.DB, error) {
	if cfg == nil || cfg.Source == "" {
		return nil, fmt.Errorf("database source is required")
	}

	gormConfig := &gorm.Config{}
	if toolsConfig.LoggerConfig.EnabledDB {
		gormConfig.Logger = logger.NewGormLogger(logger.Logger, toolsConfig.LoggerConfig.GormLoggerLevel)
	} else {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(mysql.Open(cfg.Source), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}
	if cfg.ConnMaxLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTime) * time.Second)
	}

	return db, nil
}
