// Package metrics exposes Prometheus collectors for the HTTP layer, the
// alert lifecycle and the realtime hub.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsCreated     prometheus.Counter
	alertTransitions  *prometheus.CounterVec
	volunteersMatched prometheus.Histogram
	storeConflicts    prometheus.Counter

	wsConnections    prometheus.Gauge
	publishedEvents  *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	rateLimitDenials *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// New builds collectors on a private registry so several instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		alertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_alerts_created_total",
			Help: "Emergency alerts raised",
		}),
		alertTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_alert_transitions_total",
				Help: "Alert lifecycle transitions by operation and result",
			},
			[]string{"operation", "result"},
		),
		volunteersMatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sos_volunteers_matched",
			Help:    "Candidate volunteers found per alert",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		}),
		storeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_store_conflicts_total",
			Help: "Optimistic alert updates that lost a version race",
		}),

		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sos_ws_connections",
			Help: "Open realtime connections",
		}),
		publishedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_realtime_events_total",
				Help: "Realtime events published by event name",
			},
			[]string{"event"},
		),
		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_notification_failures_total",
				Help: "Failed best-effort notifications by channel",
			},
			[]string{"channel"},
		),
		rateLimitDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_deny_total",
				Help: "Requests denied by the rate limiter",
			},
			[]string{"route"},
		),

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.alertsCreated,
		m.alertTransitions,
		m.volunteersMatched,
		m.storeConflicts,
		m.wsConnections,
		m.publishedEvents,
		m.publishFailures,
		m.rateLimitDenials,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// The recorders below are no-ops on a nil *Metrics.

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) AlertCreated(matched int) {
	if m == nil {
		return
	}
	m.alertsCreated.Inc()
	m.volunteersMatched.Observe(float64(matched))
}

func (m *Metrics) AlertTransition(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.alertTransitions.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) StoreConflict() {
	if m != nil {
		m.storeConflicts.Inc()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

func (m *Metrics) EventPublished(event string) {
	if m != nil {
		m.publishedEvents.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) NotificationFailed(channel string) {
	if m != nil {
		m.publishFailures.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) RateLimited(route string) {
	if m != nil {
		m.rateLimitDenials.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) CacheHit(cache string) {
	if m != nil {
		m.cacheHits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) CacheMiss(cache string) {
	if m != nil {
		m.cacheMisses.WithLabelValues(cache).Inc()
	}
}
