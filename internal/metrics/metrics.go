// Package metrics exposes Prometheus collectors for reconciliation passes.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors updated by the reconciler.
type Metrics struct {
	Registry *prometheus.Registry

	Actions    *prometheus.CounterVec
	Candidates *prometheus.GaugeVec
	Passes     *prometheus.CounterVec
	LastPass   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdn_dns_actions_total",
				Help: "Provider write actions by kind and result.",
			},
			[]string{"provider", "kind", "result"},
		),
		Candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cdn_dns_candidates",
				Help: "Candidate IPs available per line in the last pass.",
			},
			[]string{"line"},
		),
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdn_dns_passes_total",
				Help: "Reconciliation passes by outcome.",
			},
			[]string{"result"},
		),
		LastPass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cdn_dns_last_pass_timestamp_seconds",
				Help: "Unix time the last pass finished.",
			},
		),
	}
	m.Registry.MustRegister(
		m.Actions, m.Candidates, m.Passes, m.LastPass,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}
