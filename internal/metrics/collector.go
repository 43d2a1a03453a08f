// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates routing and orchestration metrics. All record
// methods are nil-receiver safe so instrumentation can stay optional.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Routing metrics
	classificationsTotal  *prometheus.CounterVec
	routingDecisionsTotal *prometheus.CounterVec

	// Orchestration metrics
	handoffsTotal        *prometheus.CounterVec
	handoffFailuresTotal *prometheus.CounterVec
	guardTripsTotal      prometheus.Counter
	sessionOutcomes      *prometheus.CounterVec
	turnDuration         *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the swarmroute metric families under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

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

	c.classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of intent classifications",
		},
		[]string{"category"},
	)

	c.routingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"strategy"},
	)

	c.handoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of executed handoff transitions",
		},
		[]string{"from_specialist", "to_specialist"},
	)

	c.handoffFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_failures_total",
			Help:      "Total number of failed handoff attempts",
		},
		[]string{"reason"},
	)

	c.guardTripsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_guard_trips_total",
			Help:      "Total number of sessions stopped by the handoff budget",
		},
	)

	c.sessionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_outcomes_total",
			Help:      "Total number of finalized sessions by status",
		},
		[]string{"status"},
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Specialist turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"specialist"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordClassification records one intent classification.
func (c *Collector) RecordClassification(category string) {
	if c == nil {
		return
	}
	c.classificationsTotal.WithLabelValues(category).Inc()
}

// RecordRoutingDecision records one strategy selection.
func (c *Collector) RecordRoutingDecision(strategy string) {
	if c == nil {
		return
	}
	c.routingDecisionsTotal.WithLabelValues(strategy).Inc()
}

// RecordHandoff records one executed transition.
func (c *Collector) RecordHandoff(fromSpecialist, toSpecialist string) {
	if c == nil {
		return
	}
	c.handoffsTotal.WithLabelValues(fromSpecialist, toSpecialist).Inc()
}

// RecordHandoffFailure records one rejected handoff attempt.
func (c *Collector) RecordHandoffFailure(reason string) {
	if c == nil {
		return
	}
	c.handoffFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordGuardTrip records one session stopped by the handoff budget.
func (c *Collector) RecordGuardTrip() {
	if c == nil {
		return
	}
	c.guardTripsTotal.Inc()
}

// RecordSessionOutcome records one finalized session.
func (c *Collector) RecordSessionOutcome(status string, totalHandoffs int) {
	if c == nil {
		return
	}
	c.sessionOutcomes.WithLabelValues(status).Inc()
	c.logger.Debug("session finalized",
		zap.String("status", status),
		zap.Int("total_handoffs", totalHandoffs))
}

// ObserveTurnDuration records one specialist invocation's latency.
func (c *Collector) ObserveTurnDuration(specialist string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnDuration.WithLabelValues(specialist).Observe(duration.Seconds())
}
