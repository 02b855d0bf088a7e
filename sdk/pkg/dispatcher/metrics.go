package dispatcher

import "time"

// MetricsCollector 指标收集器接口
// 用于集成 Prometheus、StatsD 等监控系统
type MetricsCollector interface {
	// RecordProcessed 记录一次成功处理
	RecordProcessed(eventType string, duration time.Duration)

	// RecordDuplicate 记录一次重复投递短路
	RecordDuplicate(eventType string)

	// RecordFailure 记录一次处理失败
	RecordFailure(eventType string)

	// RecordDeadLetter 记录一次死信
	RecordDeadLetter(eventType string)
}

// NoOpMetricsCollector 空操作指标收集器（默认实现）
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordProcessed(string, time.Duration) {}
func (n *NoOpMetricsCollector) RecordDuplicate(string)                {}
func (n *NoOpMetricsCollector) RecordFailure(string)                  {}
func (n *NoOpMetricsCollector) RecordDeadLetter(string)               {}
