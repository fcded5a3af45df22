// Package metrics exposes Prometheus counters for post generation,
// image assembly and scheduled runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nebula"

// Image sources used as label values.
const (
	SourceSearch = "search"
	SourceAI     = "ai"
)

// Metrics holds every collector registered by nebula. Each instance owns its
// own registry so tests and multiple apps in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal *prometheus.CounterVec
	ImagesRequested  *prometheus.CounterVec
	ImagesObtained   *prometheus.CounterVec
	SearchFallbacks  prometheus.Counter
	ScheduleRuns     *prometheus.CounterVec
	PostsSaved       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Structured content generation requests by result",
		}, []string{"result"}),
		ImagesRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "requested_total",
			Help:      "Images requested from each source, including fallback requests",
		}, []string{"source"}),
		ImagesObtained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "obtained_total",
			Help:      "Images actually obtained from each source",
		}, []string{"source"}),
		SearchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "search_fallbacks_total",
			Help:      "Image searches that failed and fell back to generation",
		}),
		ScheduleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled runs by result",
		}, []string{"result"}),
		PostsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "posts_saved_total",
			Help:      "Posts written to the store by status",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.GenerationsTotal,
		m.ImagesRequested,
		m.ImagesObtained,
		m.SearchFallbacks,
		m.ScheduleRuns,
		m.PostsSaved,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one structured generation call.
func (m *Metrics) ObserveGeneration(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.GenerationsTotal.WithLabelValues(result).Inc()
}

// ObserveImages records the per-source outcome of one image assembly.
func (m *Metrics) ObserveImages(searchRequested, searchObtained, aiRequested, aiObtained int, fellBack bool) {
	if m == nil {
		return
	}
	m.ImagesRequested.WithLabelValues(SourceSearch).Add(float64(searchRequested))
	m.ImagesObtained.WithLabelValues(SourceSearch).Add(float64(searchObtained))
	m.ImagesRequested.WithLabelValues(SourceAI).Add(float64(aiRequested))
	m.ImagesObtained.WithLabelValues(SourceAI).Add(float64(aiObtained))
	if fellBack {
		m.SearchFallbacks.Inc()
	}
}

// ObserveScheduleRun records a scheduled run.
func (m *Metrics) ObserveScheduleRun(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ScheduleRuns.WithLabelValues(result).Inc()
}

// ObservePostSaved records a successful post write.
func (m *Metrics) ObservePostSaved(status string) {
	if m == nil {
		return
	}
	m.PostsSaved.WithLabelValues(status).Inc()
}
