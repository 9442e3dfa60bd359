// Package metrics exposes Prometheus instrumentation for session pools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records pool, session and sweep metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	sessions       *prometheus.GaugeVec
	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	failoversTotal *prometheus.CounterVec
	exhaustedTotal *prometheus.CounterVec
	reconnectTotal *prometheus.CounterVec
	sweepsTotal    prometheus.Counter
	sweepDuration  prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a collector and registers it on reg.
// Pass prometheus.DefaultRegisterer to expose the metrics on the default /metrics handler.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		sessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_sessions",
				Help:      "Number of sessions per pool by health state",
			},
			[]string{"pool", "state"},
		),
		queriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_queries_total",
				Help:      "Total number of queries issued to sessions",
			},
			[]string{"pool", "result"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_query_duration_seconds",
				Help:      "Query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"pool"},
		),
		failoversTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_failovers_total",
				Help:      "Number of times the router moved past a session that failed mid-query",
			},
			[]string{"pool"},
		),
		exhaustedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_exhausted_total",
				Help:      "Number of routed queries for which no session could answer",
			},
			[]string{"pool"},
		),
		reconnectTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_connects_total",
				Help:      "Total number of physical connect attempts",
			},
			[]string{"pool", "result"},
		),
		sweepsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of completed health sweeps",
			},
		),
		sweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of a health sweep in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordQuery records one query against a session.
func (c *Collector) RecordQuery(pool string, ok bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.queriesTotal.WithLabelValues(pool, resultLabel(ok)).Inc()
	c.queryDuration.WithLabelValues(pool).Observe(duration.Seconds())
}

// RecordConnect records one physical connect attempt.
func (c *Collector) RecordConnect(pool string, ok bool) {
	if c == nil {
		return
	}
	c.reconnectTotal.WithLabelValues(pool, resultLabel(ok)).Inc()
}

// RecordFailover records the router skipping a session that failed during a query.
func (c *Collector) RecordFailover(pool string) {
	if c == nil {
		return
	}
	c.failoversTotal.WithLabelValues(pool).Inc()
}

// RecordExhausted records a routed query that found no answering session.
func (c *Collector) RecordExhausted(pool string) {
	if c == nil {
		return
	}
	c.exhaustedTotal.WithLabelValues(pool).Inc()
}

// RecordSweep records a completed sweep.
func (c *Collector) RecordSweep(duration time.Duration, attempted, recovered int) {
	if c == nil {
		return
	}
	c.sweepsTotal.Inc()
	c.sweepDuration.Observe(duration.Seconds())
	if attempted > 0 {
		c.logger.Debug("sweep recorded",
			zap.Int("attempted", attempted),
			zap.Int("recovered", recovered),
			zap.Duration("duration", duration),
		)
	}
}

// SetSessions publishes the current healthy/unhealthy session counts of a pool.
func (c *Collector) SetSessions(pool string, healthy, unhealthy int) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues(pool, "healthy").Set(float64(healthy))
	c.sessions.WithLabelValues(pool, "unhealthy").Set(float64(unhealthy))
}
