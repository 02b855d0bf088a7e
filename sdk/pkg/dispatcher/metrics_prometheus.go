package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector Prometheus 指标收集器实现
type PrometheusMetricsCollector struct {
	processedTotal  *prometheus.CounterVec
	duplicateTotal  *prometheus.CounterVec
	failureTotal    *prometheus.CounterVec
	deadLetterTotal *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector 创建并注册 Prometheus 指标收集器
// registerer 传 nil 时使用默认注册器
func NewPrometheusMetricsCollector(registerer prometheus.Registerer) *PrometheusMetricsCollector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &PrometheusMetricsCollector{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "dispatcher",
			Name:      "events_processed_total",
			Help:      "Total number of events processed successfully",
		}, []string{"event_type"}),
		duplicateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "dispatcher",
			Name:      "events_duplicate_total",
			Help:      "Total number of duplicate deliveries short-circuited",
		}, []string{"event_type"}),
		failureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "dispatcher",
			Name:      "events_failed_total",
			Help:      "Total number of failed event deliveries",
		}, []string{"event_type"}),
		deadLetterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "dispatcher",
			Name:      "events_dead_letter_total",
			Help:      "Total number of events routed to the dead letter destination",
		}, []string{"event_type"}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jxt",
			Subsystem: "dispatcher",
			Name:      "event_process_duration_seconds",
			Help:      "Event handler execution duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}

	registerer.MustRegister(
		c.processedTotal,
		c.duplicateTotal,
		c.failureTotal,
		c.deadLetterTotal,
		c.processDuration,
	)
	return c
}

func (c *PrometheusMetricsCollector) RecordProcessed(eventType string, duration time.Duration) {
	c.processedTotal.WithLabelValues(eventType).Inc()
	c.processDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (c *PrometheusMetricsCollector) RecordDuplicate(eventType string) {
	c.duplicateTotal.WithLabelValues(eventType).Inc()
}

func (c *PrometheusMetricsCollector) RecordFailure(eventType string) {
	c.failureTotal.WithLabelValues(eventType).Inc()
}

func (c *PrometheusMetricsCollector) RecordDeadLetter(eventType string) {
	c.deadLetterTotal.WithLabelValues(eventType).Inc()
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
