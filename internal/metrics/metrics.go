// Package metrics exports run activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/cogflow/pkg/domain"
)

const namespace = "cogflow"

// Metrics holds the collectors of one engine.
type Metrics struct {
	registry *prometheus.Registry

	PromptVisits   *prometheus.CounterVec
	PromptErrors   *prometheus.CounterVec
	PromptDuration *prometheus.HistogramVec
	FlowsTaken     *prometheus.CounterVec
	ModelQueries   *prometheus.CounterVec
	Calls          *prometheus.CounterVec
	CallDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PromptVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_visits_total",
			Help:      "Total number of prompt invocations.",
		}, []string{"prompt"}),
		PromptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_errors_total",
			Help:      "Prompt invocations that failed.",
		}, []string{"prompt"}),
		PromptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_duration_seconds",
			Help:      "Duration of prompt invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"prompt"}),
		FlowsTaken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_taken_total",
			Help:      "Flows chosen at the end of a prompt.",
		}, []string{"prompt", "flow"}),
		ModelQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_queries_total",
			Help:      "Next-token queries sent to the language model.",
		}, []string{"prompt"}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cog_calls_total",
			Help:      "Cog invocations by outcome.",
		}, []string{"cog", "outcome"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cog_call_duration_seconds",
			Help:      "Duration of cog invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"cog"}),
	}
	m.registry.MustRegister(
		m.PromptVisits, m.PromptErrors, m.PromptDuration, m.FlowsTaken,
		m.ModelQueries, m.Calls, m.CallDuration,
	)
	return m
}

// Registry is the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks feeds the collectors from engine events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPromptEnter: func(_ context.Context, e *domain.PromptEvent) {
			m.PromptVisits.WithLabelValues(e.Prompt).Inc()
		},
		OnPromptLeave: func(_ context.Context, e *domain.PromptEvent) {
			m.PromptDuration.WithLabelValues(e.Prompt).Observe(e.Duration.Seconds())
			m.ModelQueries.WithLabelValues(e.Prompt).Add(float64(e.Queries))
			if e.IsError {
				m.PromptErrors.WithLabelValues(e.Prompt).Inc()
				return
			}
			m.FlowsTaken.WithLabelValues(e.Prompt, e.Next).Inc()
		},
		OnCallReturn: func(_ context.Context, e *domain.CallEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.Calls.WithLabelValues(e.Cog, outcome).Inc()
			m.CallDuration.WithLabelValues(e.Cog).Observe(e.Duration.Seconds())
		},
	}
}
