package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks stock-stream fanout health.
type StreamMetrics struct {
	subscribers prometheus.Gauge
	delivered   prometheus.Counter
	dropped     prometheus.Counter
	dispatched  *prometheus.CounterVec
}

// NewStreamMetrics registers the stream metrics on the provided registerer.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		return &StreamMetrics{}
	}
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Currently connected stock-stream subscribers.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_deltas_delivered_total",
		Help:      "Stock deltas delivered to subscribers.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_deltas_dropped_total",
		Help:      "Stock deltas dropped because a subscriber buffer was full.",
	})
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_outbox_dispatched_total",
		Help:      "Outbox stock deltas dispatched by result.",
	}, []string{"result"})
	reg.MustRegister(subscribers, delivered, dropped, dispatched)
	return &StreamMetrics{
		subscribers: subscribers,
		delivered:   delivered,
		dropped:     dropped,
		dispatched:  dispatched,
	}
}

// SubscriberConnected increments the subscriber gauge.
func (s *StreamMetrics) SubscriberConnected() {
	if s == nil || s.subscribers == nil {
		return
	}
	s.subscribers.Inc()
}

// SubscriberDisconnected decrements the subscriber gauge.
func (s *StreamMetrics) SubscriberDisconnected() {
	if s == nil || s.subscribers == nil {
		return
	}
	s.subscribers.Dec()
}

// IncDelivered counts a delta handed to a subscriber channel.
func (s *StreamMetrics) IncDelivered() {
	if s == nil || s.delivered == nil {
		return
	}
	s.delivered.Inc()
}

// IncDropped counts a delta dropped for a slow subscriber.
func (s *StreamMetrics) IncDropped() {
	if s == nil || s.dropped == nil {
		return
	}
	s.dropped.Inc()
}

// IncDispatched counts an outbox dispatch attempt by result label.
func (s *StreamMetrics) IncDispatched(result string) {
	if s == nil || s.dispatched == nil {
		return
	}
	s.dispatched.WithLabelValues(normalizeLabel(result)).Inc()
}
