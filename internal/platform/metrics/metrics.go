// Package metrics exposes Prometheus instrumentation for the scheduler
// and the event index. The scheduler side is fed by lifecycle signals;
// gauge families are refreshed from stats snapshots by whoever holds
// them, typically the HTTP layer or a periodic poller.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/scheduler"
)

// Collector owns the service's metric families and implements
// scheduler.SignalHandler so it can be registered on the signal emitter.
type Collector struct {
	registry *prometheus.Registry

	signals          *prometheus.CounterVec
	taskFailures     *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	activeTasks      prometheus.Gauge
	concurrencyBound prometheus.Gauge

	indexEntries  prometheus.Gauge
	cacheEntries  prometheus.Gauge
	cacheHitRate  prometheus.Gauge
	fragmentation prometheus.Gauge
}

// NewCollector creates a Collector with all families registered on a
// fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hearthd",
			Subsystem: "scheduler",
			Name:      "signals_total",
			Help:      "Task lifecycle signals emitted by the scheduler, by kind and task type.",
		}, []string{"kind", "task_type"}),

		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hearthd",
			Subsystem: "scheduler",
			Name:      "task_failures_total",
			Help:      "Tasks that exhausted their retries, by task type.",
		}, []string{"task_type"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Queued tasks by priority.",
		}, []string{"priority"}),

		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "scheduler",
			Name:      "active_tasks",
			Help:      "Tasks currently executing.",
		}),

		concurrencyBound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "scheduler",
			Name:      "concurrency_bound",
			Help:      "Current self-tuned concurrency bound.",
		}),

		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "index",
			Name:      "entries",
			Help:      "Events currently indexed.",
		}),

		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "index",
			Name:      "cache_entries",
			Help:      "Cached query results.",
		}),

		cacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "index",
			Name:      "cache_hit_rate",
			Help:      "Rolling query cache hit rate, between 0 and 1.",
		}),

		fragmentation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hearthd",
			Subsystem: "index",
			Name:      "fragmentation",
			Help:      "Empty bucket ratio measured by the last optimize pass.",
		}),
	}

	c.registry.MustRegister(
		c.signals,
		c.taskFailures,
		c.queueDepth,
		c.activeTasks,
		c.concurrencyBound,
		c.indexEntries,
		c.cacheEntries,
		c.cacheHitRate,
		c.fragmentation,
	)
	return c
}

// HandleSignal counts the signal and updates the gauges it carries.
func (c *Collector) HandleSignal(_ context.Context, signal *scheduler.Signal) error {
	c.signals.WithLabelValues(string(signal.Kind), string(signal.TaskType)).Inc()

	switch signal.Kind {
	case scheduler.SignalFailed:
		c.taskFailures.WithLabelValues(string(signal.TaskType)).Inc()
	case scheduler.SignalOptimizationApplied:
		c.concurrencyBound.Set(float64(signal.ConcurrencyBound))
	}
	return nil
}

// ObserveQueue refreshes the scheduler gauges from a status snapshot.
func (c *Collector) ObserveQueue(status scheduler.QueueStatus) {
	for priority, depth := range status.DepthByPriority {
		c.queueDepth.WithLabelValues(priority.String()).Set(float64(depth))
	}
	c.activeTasks.Set(float64(len(status.ActiveTasks)))
	c.concurrencyBound.Set(float64(status.ConcurrencyBound))
}

// ObserveIndex refreshes the index gauges from a stats snapshot.
func (c *Collector) ObserveIndex(stats index.Stats) {
	c.indexEntries.Set(float64(stats.Entries))
	c.cacheEntries.Set(float64(stats.CacheEntries))
	c.cacheHitRate.Set(stats.CacheHitRate)
	c.fragmentation.Set(stats.Fragmentation)
}

// Handler returns the HTTP handler serving the /metrics exposition.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
