package saga

// MetricsCollector saga 指标收集接口
type MetricsCollector interface {
	// RecordStarted 新实例创建
	RecordStarted(sagaType string)
	// RecordCompleted 实例成功完成
	RecordCompleted(sagaType string)
	// RecordFailed 实例以失败终态结束
	RecordFailed(sagaType string)
	// RecordStepFailed 正向步骤失败（触发补偿）
	RecordStepFailed(sagaType, stepName string)
	// RecordCompensated 补偿步骤成功执行
	RecordCompensated(sagaType, stepName string)
	// RecordRemediation 补偿耗尽，交付人工修复队列
	RecordRemediation(sagaType string)
}

// NoOpMetricsCollector 默认空实现
type NoOpMetricsCollector struct{}

func (c *NoOpMetricsCollector) RecordStarted(sagaType string)               {}
func (c *NoOpMetricsCollector) RecordCompleted(sagaType string)             {}
func (c *NoOpMetricsCollector) RecordFailed(sagaType string)                {}
func (c *NoOpMetricsCollector) RecordStepFailed(sagaType, stepName string)  {}
func (c *NoOpMetricsCollector) RecordCompensated(sagaType, stepName string) {}
func (c *NoOpMetricsCollector) RecordRemediation(sagaType string)           {}

var _ MetricsCollector = (*NoOpMetricsCollector)(nil)
