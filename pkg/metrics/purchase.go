package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PurchaseMetrics records outcomes of ticket purchase attempts.
type PurchaseMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tickets  *prometheus.CounterVec
}

// NewPurchaseMetrics registers the purchase metrics on the provided registerer.
func NewPurchaseMetrics(reg prometheus.Registerer) *PurchaseMetrics {
	if reg == nil {
		return &PurchaseMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchase_attempts_total",
		Help:      "Purchase attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "purchase_duration_seconds",
		Help:      "Duration of purchase attempts in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	tickets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tickets_sold_total",
		Help:      "Tickets sold per event.",
	}, []string{"event_id"})
	reg.MustRegister(outcomes, duration, tickets)
	return &PurchaseMetrics{
		outcomes: outcomes,
		duration: duration,
		tickets:  tickets,
	}
}

// Outcome labels for purchase attempts.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeDuplicate  = "duplicate"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// ObserveAttempt records a completed purchase attempt.
func (p *PurchaseMetrics) ObserveAttempt(outcome string, duration time.Duration) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	p.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// AddTicketsSold adds sold tickets for the event.
func (p *PurchaseMetrics) AddTicketsSold(eventID string, quantity int) {
	if p == nil || p.tickets == nil || quantity <= 0 {
		return
	}
	p.tickets.WithLabelValues(normalizeLabel(eventID)).Add(float64(quantity))
}
