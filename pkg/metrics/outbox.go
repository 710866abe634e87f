package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox relay outcomes.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the relay, by outcome.",
	}, []string{"outcome"})
	batches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_size",
		Help:    "Rows claimed per non-empty relay batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(events, batches)
	return &OutboxMetrics{events: events, batches: batches}
}

func (m *OutboxMetrics) IncEvent(outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil || m.batches == nil || rows <= 0 {
		return
	}
	m.batches.Observe(float64(rows))
}
