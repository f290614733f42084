// Package metrics exposes ledger measurements in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

const namespace = "ledger"

// Collector owns a private registry so tests and multiple engines never collide.
type Collector struct {
	registry        *prometheus.Registry
	movements       *prometheus.CounterVec
	movementLatency *prometheus.HistogramVec
	lockWait        prometheus.Histogram
	conflictRetries *prometheus.CounterVec
	eventDeliveries *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector registers every ledger metric plus the Go and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		movements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_total",
			Help:      "Movements of value by kind and outcome",
		}, []string{"kind", "outcome"}),
		movementLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_duration_seconds",
			Help:      "Time from reservation to final outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring account locks",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		}),
		conflictRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflict_retries_total",
			Help:      "Attempts retried after an optimistic version conflict",
		}, []string{"kind"}),
		eventDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_deliveries_total",
			Help:      "Completed-movement notifications by sink and result",
		}, []string{"sink", "result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (c *Collector) ObserveMovement(kind domain.TransactionKind, outcome string, elapsed time.Duration) {
	c.movements.WithLabelValues(string(kind), outcome).Inc()
	c.movementLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveLockWait(elapsed time.Duration) {
	c.lockWait.Observe(elapsed.Seconds())
}

func (c *Collector) IncConflictRetry(kind domain.TransactionKind) {
	c.conflictRetries.WithLabelValues(string(kind)).Inc()
}

// ObserveDelivery counts one notification attempt for sink.
func (c *Collector) ObserveDelivery(sink, result string) {
	c.eventDeliveries.WithLabelValues(sink, result).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched pattern, not the raw path.
func (c *Collector) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
