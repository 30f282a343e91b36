// Package metrics provides Prometheus metrics for the intake service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mutation kinds for TaskMutationsTotal.
const (
	MutationCreated = "created"
	MutationUpdated = "updated"
	MutationLinked  = "linked"
)

// Extraction outcomes for ExtractionsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing, so tests and the CLI can skip it.
type Metrics struct {
	MessagesTotal      *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	TaskMutationsTotal *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_messages_total",
				Help: "Messages processed by message type and action.",
			},
			[]string{"message_type", "action"},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_extractions_total",
				Help: "Extractions by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		ExtractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_extraction_duration_seconds",
				Help:    "Extraction latency by source.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		TaskMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_task_mutations_total",
				Help: "Task writes by kind.",
			},
			[]string{"kind"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.MessagesTotal)
	reg.MustRegister(m.ExtractionsTotal)
	reg.MustRegister(m.ExtractionDuration)
	reg.MustRegister(m.TaskMutationsTotal)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordMessage counts one processed message.
func (m *Metrics) RecordMessage(messageType, action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.MessagesTotal.WithLabelValues(messageType, action).Inc()
}

// RecordExtraction counts one extraction and observes its latency.
func (m *Metrics) RecordExtraction(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(source, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(source).Observe(took.Seconds())
}

// RecordMutation adds n task writes of the given kind.
func (m *Metrics) RecordMutation(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TaskMutationsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
