package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "booklend"

// Transition outcomes
const (
	resultApplied    = "applied"
	resultIdempotent = "idempotent"
	resultRejected   = "rejected"
)

// Notification outcomes
const (
	notifyDelivered = "delivered"
	notifyQueued    = "queued"
	notifyDropped   = "dropped"
	notifyRetried   = "retried"
	notifyFailed    = "failed"
)

// Metrics counts engine activity
type Metrics struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	inconsistent  prometheus.Counter
}

// NewMetrics creates the engine counters and registers them on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: "transitions_total",
		Help: "State machine operations by outcome"}, []string{"operation", "result"})
	m.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: "notifications_total",
		Help: "Notification deliveries by outcome"}, []string{"result"})
	m.inconsistent = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: "inconsistent_state_total",
		Help: "Dispute resolutions that found the transaction outside the disputed state"})

	registry.MustRegister(m.transitions)
	registry.MustRegister(m.notifications)
	registry.MustRegister(m.inconsistent)
	return m
}

func (m *Metrics) transition(op, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, result).Inc()
}

func (m *Metrics) notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) incInconsistent() {
	if m == nil {
		return
	}
	m.inconsistent.Inc()
}
