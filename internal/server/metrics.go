package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ebomlca "github.com/superdango/ebom-lca"
)

// Metrics instruments the http api.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	completions *prometheus.CounterVec
}

// NewMetrics registers the api metrics on a dedicated registry.
func NewMetrics() *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ebomlca_http_requests_total",
		Help: "Counts API requests by route and status.",
	}, []string{"route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ebomlca_http_request_duration_seconds",
		Help:    "API request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ebomlca_completions_total",
		Help: "Table completion attempts by scenario and outcome.",
	}, []string{"scenario", "outcome"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(requests, duration, completions)

	return &Metrics{
		registry:    registry,
		requests:    requests,
		duration:    duration,
		completions: completions,
	}
}

// Handler exposes the api metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		m.requests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// completion counts a completion attempt. Unknown scenarios share one label value
// so that request input can not grow the label set.
func (m *Metrics) completion(scenario ebomlca.Scenario, accepted bool) {
	label := string(scenario)
	if _, found := scenario.Threshold(); !found {
		label = "unknown"
	}
	outcome := "refused"
	if accepted {
		outcome = "accepted"
	}
	m.completions.WithLabelValues(label, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
