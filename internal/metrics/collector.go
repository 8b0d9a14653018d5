// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 连接池指标
	poolAcquireTotal    *prometheus.CounterVec
	poolAcquireWait     prometheus.Histogram
	poolConnClosedTotal *prometheus.CounterVec
	poolRetriesTotal    *prometheus.CounterVec
	poolConnections     *prometheus.GaugeVec
	poolWaiters         prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 连接池指标
	c.poolAcquireTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "acquire_total",
			Help:      "Total number of connection acquisitions by result",
		},
		[]string{"result"}, // ok, exhausted, canceled, closed, error
	)

	c.poolAcquireWait = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a connection",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	c.poolConnClosedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "connections_closed_total",
			Help:      "Total number of closed native connections by reason",
		},
		[]string{"reason"},
	)

	c.poolRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "lock_retries_total",
			Help:      "Total number of retries caused by busy or locked database",
		},
		[]string{"operation"},
	)

	c.poolConnections = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "connections",
			Help:      "Number of native connections by state",
		},
		[]string{"state"}, // open, idle, in_use
	)

	c.poolWaiters = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "waiters",
			Help:      "Number of callers blocked waiting for a connection",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🗄️ 连接池指标记录
// =============================================================================

// RecordAcquire 记录一次借出结果及等待时间
func (c *Collector) RecordAcquire(result string, wait time.Duration) {
	c.poolAcquireTotal.WithLabelValues(result).Inc()
	c.poolAcquireWait.Observe(wait.Seconds())
}

// RecordConnClosed 记录底层连接关闭
func (c *Collector) RecordConnClosed(reason string) {
	c.poolConnClosedTotal.WithLabelValues(reason).Inc()
}

// RecordRetry 记录一次锁竞争重试
func (c *Collector) RecordRetry(op string) {
	c.poolRetriesTotal.WithLabelValues(op).Inc()
}

// RecordPoolSize 记录连接池容量快照
func (c *Collector) RecordPoolSize(open, idle, outstanding, waiters int) {
	c.poolConnections.WithLabelValues("open").Set(float64(open))
	c.poolConnections.WithLabelValues("idle").Set(float64(idle))
	c.poolConnections.WithLabelValues("in_use").Set(float64(outstanding))
	c.poolWaiters.Set(float64(waiters))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
