package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 按方法、路由、状态码统计请求数。
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "todo_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// AuthAttemptsTotal 注册/登录结果统计。
	AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_auth_attempts_total",
		Help: "Register and login attempts by result.",
	}, []string{"action", "result"})

	// TaskOperationsTotal 任务操作结果统计。
	TaskOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_task_operations_total",
		Help: "Task operations by result.",
	}, []string{"op", "result"})

	initOnce sync.Once
)

// InitMetrics 注册所有指标，可重复调用。
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthAttemptsTotal,
			TaskOperationsTotal,
		)
	})
}
