// Package metrics exposes prometheus collectors for the admission chain
package metrics

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several pipelines can coexist in one process
// A nil *Metrics is valid and records nothing
type Metrics struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	halts           *prometheus.CounterVec
	rateLimited     prometheus.Counter
	guardFailures   *prometheus.CounterVec
	sinkRecords     prometheus.Counter
}

// New registers the admission collectors plus the go and process collectors
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of requests by method and status class",
			},
			[]string{"method", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		inFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		halts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_halts_total",
				Help:      "Requests answered by an admission stage instead of a route",
			},
			[]string{"stage", "status"},
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_rejected_total",
				Help:      "Requests rejected because the client exceeded its window",
			},
		),
		guardFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_failures_total",
				Help:      "Authorize or audit log failures answered with a generic 500",
			},
			[]string{"phase"},
		),
		sinkRecords: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "error_sink_records_total",
				Help:      "Failure records written to the operator error sink",
			},
		),
	}
}

// Registry returns the private registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Wrap records count, latency and in-flight gauge for every request
func (m *Metrics) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		class := statusClass(status)
		m.requestsTotal.WithLabelValues(r.Method, class).Inc()
		m.requestDuration.WithLabelValues(r.Method, class).Observe(time.Since(start).Seconds())
	})
}

// Halt counts a request answered by stage with status
func (m *Metrics) Halt(stage string, status int) {
	if m == nil {
		return
	}
	m.halts.WithLabelValues(stage, statusClass(status)).Inc()
}

// RateLimited counts a 429 rejection
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// GuardFailure counts an authorize or log failure
func (m *Metrics) GuardFailure(phase string) {
	if m == nil {
		return
	}
	m.guardFailures.WithLabelValues(phase).Inc()
}

// SinkRecord counts a record written to the operator error sink
func (m *Metrics) SinkRecord() {
	if m == nil {
		return
	}
	m.sinkRecords.Inc()
}

func statusClass(code int) string { return fmt.Sprintf("%dxx", code/100) }
