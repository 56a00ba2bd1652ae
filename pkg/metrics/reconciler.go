package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics records payment reconciliation activity: how each
// observation resolved, how long it took, and which side effects failed.
type ReconcilerMetrics struct {
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sideEffects *prometheus.CounterVec
}

// NewReconcilerMetrics registers the reconciler metrics on the provided registerer.
func NewReconcilerMetrics(reg prometheus.Registerer) *ReconcilerMetrics {
	if reg == nil {
		return &ReconcilerMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Payment reconciliation outcomes by trigger.",
	}, []string{"trigger", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_reconcile_duration_seconds",
		Help:    "Duration of payment reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_side_effect_failures_total",
		Help: "Confirmation side effect failures by action.",
	}, []string{"action"})
	reg.MustRegister(outcomes, duration, sideEffects)
	return &ReconcilerMetrics{
		outcomes:    outcomes,
		duration:    duration,
		sideEffects: sideEffects,
	}
}

// IncOutcome increments the outcome counter for the named trigger.
func (m *ReconcilerMetrics) IncOutcome(trigger, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(trigger), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long a reconciliation run took.
func (m *ReconcilerMetrics) ObserveDuration(trigger string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncSideEffectFailure increments the failure counter for a side effect action.
func (m *ReconcilerMetrics) IncSideEffectFailure(action string) {
	if m == nil || m.sideEffects == nil {
		return
	}
	m.sideEffects.WithLabelValues(normalizeLabel(action)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
