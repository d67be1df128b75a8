// Package metrics exposes the gateway's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so that several gateways (and tests) can live
// in one process.
type Metrics struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	reloads   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citygate_auth_decisions_total",
				Help: "Edge authorization decisions by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citygate_request_duration_seconds",
				Help:    "Gateway request latency by route and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citygate_config_reloads_total",
				Help: "Configuration reload attempts by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.decisions,
		m.duration,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision counts one authorization outcome.
func (m *Metrics) ObserveDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

// ObserveReload counts a config reload; ok false means the new file was
// rejected.
func (m *Metrics) ObserveReload(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.reloads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.duration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware times every request. route maps a request to a bounded label
// value; raw paths must not be used.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			m.ObserveRequest(route(r), code, time.Since(start))
		})
	}
}
