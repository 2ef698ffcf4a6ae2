package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels.
const (
	StageRelay    = "relay"
	StageConsumer = "consumer"
)

type Metrics struct {
	EventsProcessed    *prometheus.CounterVec
	EventsFailed       *prometheus.CounterVec
	EventsDeadLettered prometheus.Counter
	RecordsUndecodable prometheus.Counter
	BatchSize          prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solsignal_lifecycle_events_processed_total",
			Help: "Lifecycle events handled successfully",
		}, []string{"stage", "type"}),
		EventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solsignal_lifecycle_events_failed_total",
			Help: "Lifecycle events whose handler returned an error",
		}, []string{"stage", "type"}),
		EventsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_lifecycle_events_dead_lettered_total",
			Help: "Outbox events given up on after the maximum number of attempts",
		}),
		RecordsUndecodable: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_lifecycle_records_undecodable_total",
			Help: "Kafka records that could not be decoded into a lifecycle event",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "solsignal_lifecycle_relay_batch_size",
			Help:    "Outbox events claimed per relay poll",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementProcessed(stage, eventType string) {
	m.EventsProcessed.WithLabelValues(stage, eventType).Inc()
}

func (m *Metrics) IncrementFailed(stage, eventType string) {
	m.EventsFailed.WithLabelValues(stage, eventType).Inc()
}

func (m *Metrics) IncrementDeadLettered() {
	m.EventsDeadLettered.Inc()
}

func (m *Metrics) IncrementUndecodable() {
	m.RecordsUndecodable.Inc()
}

func (m *Metrics) ObserveBatchSize(n int) {
	m.BatchSize.Observe(float64(n))
}
