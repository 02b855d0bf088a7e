package saga

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector Prometheus 指标收集器实现
type PrometheusMetricsCollector struct {
	startedTotal     *prometheus.CounterVec
	completedTotal   *prometheus.CounterVec
	failedTotal      *prometheus.CounterVec
	stepFailedTotal  *prometheus.CounterVec
	compensatedTotal *prometheus.CounterVec
	remediationTotal *prometheus.CounterVec
}

// NewPrometheusMetricsCollector 创建并注册 Prometheus 指标收集器
// registerer 传 nil 时使用默认注册器
func NewPrometheusMetricsCollector(registerer prometheus.Registerer) *PrometheusMetricsCollector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &PrometheusMetricsCollector{
		startedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "instances_started_total",
			Help:      "Total number of saga instances started",
		}, []string{"saga_type"}),
		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "instances_completed_total",
			Help:      "Total number of saga instances completed successfully",
		}, []string{"saga_type"}),
		failedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "instances_failed_total",
			Help:      "Total number of saga instances ended in failed state",
		}, []string{"saga_type"}),
		stepFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "steps_failed_total",
			Help:      "Total number of forward steps that failed and triggered compensation",
		}, []string{"saga_type", "step"}),
		compensatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "steps_compensated_total",
			Help:      "Total number of compensation steps executed successfully",
		}, []string{"saga_type", "step"}),
		remediationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "saga",
			Name:      "remediation_total",
			Help:      "Total number of sagas handed to manual remediation",
		}, []string{"saga_type"}),
	}

	registerer.MustRegister(
		c.startedTotal,
		c.completedTotal,
		c.failedTotal,
		c.stepFailedTotal,
		c.compensatedTotal,
		c.remediationTotal,
	)
	return c
}

func (c *PrometheusMetricsCollector) RecordStarted(sagaType string) {
	c.startedTotal.WithLabelValues(sagaType).Inc()
}

func (c *PrometheusMetricsCollector) RecordCompleted(sagaType string) {
	c.completedTotal.WithLabelValues(sagaType).Inc()
}

func (c *PrometheusMetricsCollector) RecordFailed(sagaType string) {
	c.failedTotal.WithLabelValues(sagaType).Inc()
}

func (c *PrometheusMetricsCollector) RecordStepFailed(sagaType, stepName string) {
	c.stepFailedTotal.WithLabelValues(sagaType, stepName).Inc()
}

func (c *PrometheusMetricsCollector) RecordCompensated(sagaType, stepName string) {
	c.compensatedTotal.WithLabelValues(sagaType, stepName).Inc()
}

func (c *PrometheusMetricsCollector) RecordRemediation(sagaType string) {
	c.remediationTotal.WithLabelValues(sagaType).Inc()
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
