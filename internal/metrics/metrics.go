// Package metrics exposes hunt progress as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/mysterynight"
)

type Metrics struct {
	registry *prometheus.Registry

	identities      *prometheus.CounterVec
	stagesCompleted *prometheus.CounterVec
	chaseOutcomes   *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers every series on a private registry, so tests can build as
// many as they like.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		identities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identities_resolved_total",
			Help:      "Identity lookups by result.",
		}, []string{"result"}),
		stagesCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_completed_total",
			Help:      "Gated stages completed by players.",
		}, []string{"stage"}),
		chaseOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chase_outcomes_total",
			Help:      "Resolved chase games by outcome.",
		}, []string{"outcome"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IdentityResolved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.identities.WithLabelValues(result).Inc()
}

func (m *Metrics) StageCompleted(stage mysterynight.Stage) {
	m.stagesCompleted.WithLabelValues(stage.String()).Inc()
}

func (m *Metrics) ChaseResolved(outcome chase.Outcome) {
	m.chaseOutcomes.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// ObserveRequest records one finished HTTP request. route is the chi route
// pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
