package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ContextKey string

const (
	TrafficKey ContextKey = "JXT-Correlation-Id"
	LoggerKey  ContextKey = "_jxt-consistency-zap-logger"
)

var (
	Logger        *zap.Logger        //全局ZapLogger打印
	DefaultLogger *zap.SugaredLogger //全局SugarLogger打印，用于简易打印
)

// WithCorrelation 将关联ID写入上下文，并派生一个带关联ID字段的logger
// 事件消费与saga推进共用一条关联链路
func WithCorrelation(ctx context.Context, correlationID string) context.Context {
	ctx = context.WithValue(ctx, TrafficKey, correlationID)
	requestLogger := Logger.With(zap.String(string(TrafficKey), correlationID))
	return context.WithValue(ctx, LoggerKey, requestLogger)
}

// FromContext 从上下文获得logger
func FromContext(ctx context.Context) *zap.Logger {
	requestLogger, ok := ctx.Value(LoggerKey).(*zap.Logger)
	if !ok {
		// 如果没有找到 logger，使用默认 logger
		return Logger
	}
	return requestLogger
}

func Info(args ...interface{}) {
	DefaultLogger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	DefaultLogger.Infof(template, args...)
}

func Debug(args ...interface{}) {
	DefaultLogger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	DefaultLogger.Debugf(template, args...)
}

func Warn(args ...interface{}) {
	DefaultLogger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	DefaultLogger.Warnf(template, args...)
}

func Error(args ...interface{}) {
	DefaultLogger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	DefaultLogger.Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	DefaultLogger.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	DefaultLogger.Fatalf(template, args...)
	os.Exit(1)
}
