package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsReceived       prometheus.Counter
	DeliveriesTotal      *prometheus.CounterVec
	DeliveryRecordErrors prometheus.Counter
	DispatchDuration     prometheus.Histogram
	SubscribersPerEvent  prometheus.Histogram
}

// New registers the dispatcher metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the dispatcher metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_fanout_events_received_total",
			Help: "Activity events accepted for dispatch",
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solsignal_fanout_deliveries_total",
			Help: "Notification attempts by outcome",
		}, []string{"status"}),
		DeliveryRecordErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "solsignal_fanout_delivery_record_errors_total",
			Help: "Delivery records that could not be written",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "solsignal_fanout_dispatch_duration_seconds",
			Help:    "Wall time of one dispatch call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SubscribersPerEvent: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "solsignal_fanout_subscribers_per_event",
			Help:    "Subscribers resolved for one activity event",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementEventsReceived(n int) {
	m.EventsReceived.Add(float64(n))
}

func (m *Metrics) IncrementDeliveries(status string) {
	m.DeliveriesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementDeliveryRecordErrors() {
	m.DeliveryRecordErrors.Inc()
}

func (m *Metrics) ObserveDispatchDuration(d time.Duration) {
	m.DispatchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSubscribers(n int) {
	m.SubscribersPerEvent.Observe(float64(n))
}
