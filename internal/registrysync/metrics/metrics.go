package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry operation labels.
const (
	OpAdd    = "add"
	OpRemove = "remove"

	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	RegistryOps       *prometheus.CounterVec
	SubscriptionCount prometheus.Gauge
	SkippedRemovals   prometheus.Counter
	LinkMisses        prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solsignal_registry_operations_total",
			Help: "Activity-feed registry calls by operation and result",
		}, []string{"op", "result"}),
		SubscriptionCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "solsignal_subscriptions",
			Help: "Live subscription count as last written to the aggregate document",
		}),
		SkippedRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_registry_removals_skipped_total",
			Help: "Registry removals skipped because other subscriptions still watch the address",
		}),
		LinkMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_registry_link_misses_total",
			Help: "Registry links not persisted because the subscription was already gone",
		}),
	}
}

func (m *Metrics) IncrementRegistryOp(op, result string) {
	m.RegistryOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetSubscriptionCount(n int64) {
	m.SubscriptionCount.Set(float64(n))
}

func (m *Metrics) IncrementSkippedRemovals() {
	m.SkippedRemovals.Inc()
}

func (m *Metrics) IncrementLinkMisses() {
	m.LinkMisses.Inc()
}
