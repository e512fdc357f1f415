package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intake"

// Collector owns the engine metrics.
type Collector struct {
	registry *prometheus.Registry

	Messages      *prometheus.CounterVec
	Duration      prometheus.Histogram
	Collaborators *prometheus.CounterVec
	Escalations   *prometheus.CounterVec
	Validations   *prometheus.CounterVec
	Started       prometheus.Counter
	Finished      *prometheus.CounterVec
	NodeVisits    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on registry.
// A nil registry gets a private one, which keeps parallel tests independent.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Messages processed, by outcome.",
		}, []string{"status"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Time spent processing one message.",
			Buckets:   prometheus.DefBuckets,
		}),
		Collaborators: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Calls to extraction, sentiment and intent collaborators.",
		}, []string{"operation", "result"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Conversations handed to a human, by policy type.",
		}, []string{"policy_type"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Field validations, by field type and result.",
		}, []string{"field_type", "result"}),
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_started_total",
			Help:      "Conversations opened.",
		}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_finished_total",
			Help:      "Conversations that reached a final status.",
		}, []string{"status"}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "State machine nodes entered.",
		}, []string{"node_id"}),
	}
	registry.MustRegister(c.Messages, c.Duration, c.Collaborators, c.Escalations,
		c.Validations, c.Started, c.Finished, c.NodeVisits)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Hooks returns lifecycle hooks that record into the collector.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnConversationOpen: func(context.Context, *domain.ConversationEvent) {
			c.Started.Inc()
		},
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			c.NodeVisits.WithLabelValues(e.NodeID).Inc()
		},
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) {
			c.Duration.Observe(e.Duration.Seconds())
			if e.Err != nil {
				c.Messages.WithLabelValues("error").Inc()
				return
			}
			c.Messages.WithLabelValues("ok").Inc()
			if e.Status != domain.StatusActive && e.Status != "" {
				c.Finished.WithLabelValues(string(e.Status)).Inc()
			}
		},
		OnEscalation: func(_ context.Context, e *domain.EscalationEvent) {
			c.Escalations.WithLabelValues(e.PolicyType).Inc()
		},
		OnValidation: func(_ context.Context, e *domain.ValidationEvent) {
			c.Validations.WithLabelValues(string(e.FieldType), result(e.Valid)).Inc()
		},
		OnCollaboratorCall: func(_ context.Context, e *domain.CollaboratorEvent) {
			c.Collaborators.WithLabelValues(e.Operation, result(e.Err == nil)).Inc()
		},
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
