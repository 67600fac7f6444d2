package hooks

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptstrike/promptstrike/pkg/dispatcher"
	"github.com/promptstrike/promptstrike/pkg/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook counts runs, results and findings on a private registry.
// Mount Handler on the API server to expose the metrics.
type PrometheusHook struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	activeRuns    prometheus.Gauge

	resultsTotal    *prometheus.CounterVec
	successTotal    *prometheus.CounterVec
	findingsTotal   *prometheus.CounterVec
	responseSeconds *prometheus.HistogramVec
}

// NewPrometheusHook creates the hook with all metrics registered on a
// fresh registry so tests and embedding applications stay isolated.
func NewPrometheusHook() *PrometheusHook {
	registry := prometheus.NewRegistry()

	h := &PrometheusHook{
		registry: registry,
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptstrike_runs_started_total",
			Help: "Total number of test runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptstrike_runs_completed_total",
			Help: "Total number of test runs finished, by terminal status",
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promptstrike_active_runs",
			Help: "Number of test runs currently executing",
		}),
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptstrike_results_total",
			Help: "Total number of payload results, by category and outcome",
		}, []string{"category", "outcome"}),
		successTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptstrike_attack_success_total",
			Help: "Total number of successful attacks, by category and severity",
		}, []string{"category", "severity"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptstrike_findings_total",
			Help: "Total number of findings created, by category and severity",
		}, []string{"category", "severity"}),
		responseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptstrike_response_seconds",
			Help:    "Target response time distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"category"}),
	}

	registry.MustRegister(
		h.runsStarted,
		h.runsCompleted,
		h.activeRuns,
		h.resultsTotal,
		h.successTotal,
		h.findingsTotal,
		h.responseSeconds,
	)
	return h
}

// Handler serves the metrics endpoint for this hook's registry.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

// EventTypes returns the event types this hook consumes.
func (h *PrometheusHook) EventTypes() []events.Type {
	return []events.Type{
		events.TypeStart,
		events.TypeResult,
		events.TypeFinding,
		events.TypeError,
		events.TypeComplete,
	}
}

// OnEvent updates metrics from the event stream.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.StartEvent:
		h.runsStarted.Inc()
		h.activeRuns.Inc()
	case events.ResultEvent:
		outcome := "failed"
		if e.Success {
			outcome = "success"
			h.successTotal.WithLabelValues(e.Category.String(), e.Severity.String()).Inc()
		}
		h.resultsTotal.WithLabelValues(e.Category.String(), outcome).Inc()
		h.responseSeconds.WithLabelValues(e.Category.String()).Observe(e.LatencyMs / 1000)
	case events.FindingEvent:
		h.findingsTotal.WithLabelValues(e.Category.String(), e.Severity.String()).Inc()
	case events.ErrorEvent:
		if e.PayloadID != "" {
			h.resultsTotal.WithLabelValues("unknown", "error").Inc()
		}
	case events.CompleteEvent:
		h.activeRuns.Dec()
		h.runsCompleted.WithLabelValues(e.Status).Inc()
	}
	return nil
}
