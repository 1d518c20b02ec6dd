// Package metrics 提供 Prometheus 监控指标.
//
// 指标注册在私有 Registry 中；gorm 插件注册在默认 Registry，
// 对外暴露时两者合并输出.
//
// Example:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//		return err
//	}
//
//	metrics.UploadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
//	engine.GET(cfg.Metrics.Path, metrics.GinHandler())
package metrics

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/syncvault/pkg/configs"
)

// Namespace 领域指标前缀.
const Namespace = "syncvault"

// 常用标签值.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultSkipped   = "skipped"
	ResultDropped   = "dropped"
	ResultCancelled = "cancelled"

	LocationLocal  = "local"
	LocationRemote = "remote"
)

var (
	// RequestCounter HTTP 请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration HTTP 请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ActiveConnections 处理中的请求数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_in_flight_requests",
			Help:      "Number of requests being served",
		},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "uploads_total",
			Help:      "Uploads by result",
		},
		[]string{"result"},
	)

	UploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to the local store by uploads",
		},
	)

	DeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deletes_total",
			Help:      "Deletes by result",
		},
		[]string{"result"},
	)

	// ReplicationTasks 复制任务结果：success / failure / skipped / dropped.
	ReplicationTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "replication",
			Name:      "tasks_total",
			Help:      "Replication tasks by result",
		},
		[]string{"result"},
	)

	ReplicationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "replication",
			Name:      "duration_seconds",
			Help:      "Time spent replicating one file, including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	ReplicationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "replication",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the replication queue",
		},
	)

	RequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "replication",
			Name:      "requeued_total",
			Help:      "Unreplicated records re-enqueued by the requeue sweep",
		},
	)

	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation runs by result",
		},
		[]string{"result"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconciliation run duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	OrphansRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "orphans_removed_total",
			Help:      "Orphaned artifacts deleted, by location",
		},
		[]string{"location"},
	)

	OrphanCleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "cleanup_failures_total",
			Help:      "Orphan deletions that failed, by location",
		},
		[]string{"location"},
	)

	InconsistentRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "inconsistent_records_total",
			Help:      "Records whose local file was missing during a sweep",
		},
	)

	LastReconcileTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished reconciliation run",
		},
	)

	// registry Prometheus 注册表.
	registry = prometheus.NewRegistry()
	initOnce sync.Once
	initErr  error
)

func collectorsList() []prometheus.Collector {
	return []prometheus.Collector{
		RequestCounter, RequestDuration, ActiveConnections,
		UploadsTotal, UploadBytes, DeletesTotal,
		ReplicationTasks, ReplicationDuration, ReplicationQueueDepth, RequeuedTotal,
		ReconcileRuns, ReconcileDuration, OrphansRemoved, OrphanCleanupFailures,
		InconsistentRecords, LastReconcileTimestamp,
	}
}

// Init 注册所有指标，只执行一次；未启用时不注册.
func Init(cfg configs.MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(cfg.Labels, registry)

		if cfg.RuntimeMetrics {
			if initErr = reg.Register(collectors.NewGoCollector()); initErr != nil {
				return
			}

			if initErr = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); initErr != nil {
				return
			}
		}

		for _, c := range collectorsList() {
			if initErr = reg.Register(c); initErr != nil {
				return
			}
		}
	})

	return initErr
}

// GetRegistry 获取私有 Prometheus 注册表，事件总线指标也注册在这里.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Handler 返回 /metrics 处理器，合并私有与默认注册表.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// GinHandler gin 版本的 Handler.
func GinHandler() gin.HandlerFunc {
	return gin.WrapH(Handler())
}
