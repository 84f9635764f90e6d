// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records dispatch and subscription metrics. A nil *Collector is
// valid and records nothing, so callers never need to guard.
type Collector struct {
	messagesTotal       *prometheus.CounterVec
	dispatchErrorsTotal *prometheus.CounterVec
	invocationsTotal    *prometheus.CounterVec
	invocationDuration  *prometheus.HistogramVec
	deliveriesTotal     *prometheus.CounterVec
	subscriptionPending prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the kqml metric set with the given registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.messagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of performatives dispatched",
		},
		[]string{"performative"},
	)

	c.dispatchErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Total number of dispatch failures converted to error replies",
		},
		[]string{"code"},
	)

	c.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_invocations_total",
			Help:      "Total number of capability invocations",
		},
		[]string{"capability", "status"},
	)

	c.invocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_invocation_duration_seconds",
			Help:      "Capability invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"capability"},
	)

	c.deliveriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_deliveries_total",
			Help:      "Total number of subscription updates delivered",
		},
		[]string{"pattern"},
	)

	c.subscriptionPending = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscription_pending_patterns",
			Help:      "Number of query patterns with a staged, undelivered update",
		},
	)

	return c
}

// RecordMessage counts one dispatched performative.
func (c *Collector) RecordMessage(performative string) {
	if c == nil {
		return
	}
	c.messagesTotal.WithLabelValues(performative).Inc()
}

// RecordDispatchError counts one dispatch failure by error code.
func (c *Collector) RecordDispatchError(code string) {
	if c == nil {
		return
	}
	c.dispatchErrorsTotal.WithLabelValues(code).Inc()
}

// RecordInvocation counts one capability invocation and its duration.
func (c *Collector) RecordInvocation(capability, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.invocationsTotal.WithLabelValues(capability, status).Inc()
	c.invocationDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// RecordSubscriptionDelivery counts one delivered subscription update.
func (c *Collector) RecordSubscriptionDelivery(pattern string) {
	if c == nil {
		return
	}
	c.deliveriesTotal.WithLabelValues(pattern).Inc()
}

// SetSubscriptionPending records the number of staged patterns.
func (c *Collector) SetSubscriptionPending(n int) {
	if c == nil {
		return
	}
	c.subscriptionPending.Set(float64(n))
}
