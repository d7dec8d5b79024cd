// Package observability records metrics and traces.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the application.
// It owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RemoteCalls    *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	QueueDepth     prometheus.Gauge
	ActiveSessions prometheus.Gauge
}

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RemoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_operations_total",
				Help:      "Total number of table service operations",
			},
			[]string{"operation", "status"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_operation_duration_seconds",
				Help:      "Table service operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Pending sync operations across sessions",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of loaded user sessions",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.RemoteCalls,
		c.RemoteDuration,
		c.QueueDepth,
		c.ActiveSessions,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRemoteCall(operation string, duration time.Duration, err error) {
	c.RemoteCalls.WithLabelValues(operation, statusOf(err)).Inc()
	c.RemoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) AddQueueDepth(delta int) {
	c.QueueDepth.Add(float64(delta))
}

func (c *Collector) SetActiveSessions(n int) {
	c.ActiveSessions.Set(float64(n))
}

func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
