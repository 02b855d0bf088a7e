package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// 慢查询判定阈值
const defaultSlowThreshold = 200 * time.Millisecond

// gormZapLogger 将 GORM 日志桥接到全局 zap logger
// 所有 SQL（含正常执行）按级别记录，排查幂等键冲突与 saga CAS 竞争时
// 需要完整的语句和耗时
type gormZapLogger struct {
	base          *zap.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

var _ logger.Interface = (*gormZapLogger)(nil)

// NewGormLogger 创建基于 zap 的 GORM 日志器
// gormLogLevel: 4 Info, 3 Warn, 2 Error, 1 Silent
func NewGormLogger(baseLogger *zap.Logger, gormLogLevel int) logger.Interface {
	return &gormZapLogger{
		base:          baseLogger.Named("gorm"),
		level:         logger.LogLevel(gormLogLevel),
		slowThreshold: defaultSlowThreshold,
	}
}

// LogMode 返回指定级别的日志器副本
func (l *gormZapLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.base.Sugar().Infof(msg, data...)
	}
}

func (l *gormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.base.Sugar().Warnf(msg, data...)
	}
}

func (l *gormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.base.Sugar().Errorf(msg, data...)
	}
}

// Trace 记录每条 SQL 的耗时与影响行数
func (l *gormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && l.level >= logger.Error:
		l.base.Error("SQL failed", append(fields, zap.Error(err))...)
	case elapsed > l.slowThreshold && l.level >= logger.Warn:
		l.base.Warn("Slow SQL", fields...)
	case l.level >= logger.Info:
		l.base.Info("SQL", fields...)
	}
}
