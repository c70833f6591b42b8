// Package observability exposes Prometheus metrics for the engine. The
// Metrics type implements ports.EventPublisher so it can be chained into
// the event fan-out without touching the loop.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// Metrics aggregates engine lifecycle counters from the event stream.
type Metrics struct {
	registry *prometheus.Registry

	events         *prometheus.CounterVec
	steps          *prometheus.CounterVec
	checkpoints    *prometheus.CounterVec
	intents        *prometheus.CounterVec
	sessionsByStat *prometheus.GaugeVec
	planItems      prometheus.Histogram
	confidence     prometheus.Histogram
}

// NewMetrics builds the metric set on its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goi_events_total",
				Help: "Lifecycle events published, by type.",
			},
			[]string{"type"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goi_steps_total",
				Help: "Todo items settled, by final status.",
			},
			[]string{"status"},
		),
		checkpoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goi_checkpoints_total",
				Help: "Checkpoints created and resolved, by outcome.",
			},
			[]string{"outcome"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goi_intents_total",
				Help: "Parsed intents, by category and dispatch action.",
			},
			[]string{"category", "action"},
		),
		sessionsByStat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goi_sessions",
				Help: "Live sessions, by loop status.",
			},
			[]string{"status"},
		),
		planItems: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goi_plan_items",
				Help:    "Items per created plan.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goi_intent_confidence",
				Help:    "Confidence scores of parsed intents.",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
			},
		),
	}
	m.registry.MustRegister(
		m.events, m.steps, m.checkpoints, m.intents,
		m.sessionsByStat, m.planItems, m.confidence,
	)
	return m
}

// Publish implements ports.EventPublisher.
func (m *Metrics) Publish(_ context.Context, evt domain.Event) {
	m.events.WithLabelValues(string(evt.Type)).Inc()

	switch evt.Type {
	case domain.EventStatusChanged:
		if sc, ok := evt.Payload.(domain.StatusChange); ok {
			if sc.From != "" {
				m.sessionsByStat.WithLabelValues(string(sc.From)).Dec()
			}
			m.sessionsByStat.WithLabelValues(string(sc.To)).Inc()
		}
	case domain.EventPlanCreated:
		if pc, ok := evt.Payload.(domain.PlanCreated); ok {
			m.planItems.Observe(float64(pc.ItemCount))
		}
	case domain.EventStepCompleted:
		if sc, ok := evt.Payload.(domain.StepCompleted); ok {
			m.steps.WithLabelValues(string(sc.Status)).Inc()
		}
	case domain.EventCheckpointCreated:
		m.checkpoints.WithLabelValues("created").Inc()
	case domain.EventCheckpointResolved:
		if cr, ok := evt.Payload.(domain.CheckpointResolved); ok {
			if cr.Approved {
				m.checkpoints.WithLabelValues("approved").Inc()
			} else {
				m.checkpoints.WithLabelValues("rejected").Inc()
			}
		}
	case domain.EventIntentParsed:
		if ip, ok := evt.Payload.(domain.IntentParsed); ok {
			m.intents.WithLabelValues(string(ip.Category), string(ip.Action)).Inc()
			m.confidence.Observe(ip.Confidence)
		}
	}
}

// Handler serves the metric set in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

var _ ports.EventPublisher = (*Metrics)(nil)
