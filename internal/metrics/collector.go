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

// Collector 指标收集器，实现 coordination.MetricsRecorder
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 协调指标
	assignmentsTotal  *prometheus.CounterVec
	handoffsTotal     *prometheus.CounterVec
	conflictsTotal    *prometheus.CounterVec
	rebalanceRuns     *prometheus.CounterVec
	tasksReassigned   prometheus.Histogram
	operationDuration *prometheus.HistogramVec
	agentWorkload     *prometheus.GaugeVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbWaitCount       *prometheus.GaugeVec

	// Redis 指标
	redisHealthy prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 协调指标
	c.assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "assignments_total",
			Help:      "Total number of agent-to-task assignment attempts",
		},
		[]string{"role", "status"},
	)

	c.handoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "handoffs_total",
			Help:      "Total number of handoff operations",
		},
		[]string{"action", "status"}, // action: request, accept, reject
	)

	c.conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "conflicts_total",
			Help:      "Total number of conflict operations",
		},
		[]string{"type", "action"}, // action: detected, resolved
	)

	c.rebalanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "rebalance_runs_total",
			Help:      "Total number of workload rebalance runs",
		},
		[]string{"status"},
	)

	c.tasksReassigned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "rebalance_tasks_reassigned",
			Help:      "Number of tasks offered for reassignment per rebalance run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	c.operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "operation_duration_seconds",
			Help:      "Coordination operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation", "status"},
	)

	c.agentWorkload = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordination",
			Name:      "agent_workload_percentage",
			Help:      "Current workload of an agent as a percentage of capacity",
		},
		[]string{"agent_id"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbWaitCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_wait_count",
			Help:      "Total number of connections waited for",
		},
		[]string{"database"},
	)

	c.redisHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redis_healthy",
			Help:      "1 if the last Redis health check succeeded",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤝 协调指标记录
// =============================================================================

// RecordAssignment 记录一次分配尝试
func (c *Collector) RecordAssignment(role, status string) {
	if role == "" {
		role = "unspecified"
	}
	c.assignmentsTotal.WithLabelValues(role, status).Inc()
}

// RecordHandoff 记录交接操作
func (c *Collector) RecordHandoff(action, status string) {
	c.handoffsTotal.WithLabelValues(action, status).Inc()
}

// RecordConflict 记录冲突检测或解决
func (c *Collector) RecordConflict(conflictType, action string) {
	c.conflictsTotal.WithLabelValues(conflictType, action).Inc()
}

// RecordRebalance 记录一次再平衡
func (c *Collector) RecordRebalance(status string, tasksReassigned int) {
	c.rebalanceRuns.WithLabelValues(status).Inc()
	if status == "success" {
		c.tasksReassigned.Observe(float64(tasksReassigned))
	}
}

// RecordAgentWorkload 记录 Agent 当前负载
func (c *Collector) RecordAgentWorkload(agentID string, percentage float64) {
	c.agentWorkload.WithLabelValues(agentID).Set(percentage)
}

// RecordOperation 记录协调操作耗时
func (c *Collector) RecordOperation(operation, status string, duration time.Duration) {
	c.operationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 基础设施指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int, waitCount int64) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
	c.dbWaitCount.WithLabelValues(database).Set(float64(waitCount))
}

// RecordRedisHealth 记录 Redis 健康检查结果
func (c *Collector) RecordRedisHealth(healthy bool) {
	if healthy {
		c.redisHealthy.Set(1)
		return
	}
	c.redisHealthy.Set(0)
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
