package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels successful operations; failures use their error code.
const OutcomeOK = "ok"

// FulfillmentMetrics tracks commits, voids, status updates and stock movement.
type FulfillmentMetrics struct {
	commits        *prometheus.CounterVec
	commitDuration *prometheus.HistogramVec
	voids          *prometheus.CounterVec
	statusUpdates  *prometheus.CounterVec
	stockMoved     *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the engine metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	m := &FulfillmentMetrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_commits_total",
			Help: "Transaction commits by kind and outcome.",
		}, []string{"kind", "outcome"}),
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fulfillment_commit_duration_seconds",
			Help:    "Wall time of transaction commits.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		voids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_voids_total",
			Help: "Void/cancel attempts by outcome.",
		}, []string{"outcome"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_status_updates_total",
			Help: "Order status updates by target status and outcome.",
		}, []string{"status", "outcome"}),
		stockMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_stock_units_total",
			Help: "Units reserved or released by committed operations.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.commits, m.commitDuration, m.voids, m.statusUpdates, m.stockMoved)
	return m
}

// ObserveCommit records one commit attempt. units counts reserved stock and
// is only added on success.
func (m *FulfillmentMetrics) ObserveCommit(kind, outcome string, duration time.Duration, units int) {
	if m == nil || m.commits == nil {
		return
	}
	kind = normalizeLabel(kind)
	m.commits.WithLabelValues(kind, normalizeLabel(outcome)).Inc()
	m.commitDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if outcome == OutcomeOK && units > 0 {
		m.stockMoved.WithLabelValues("reserved").Add(float64(units))
	}
}

// ObserveVoid records one void attempt and the units it returned to stock.
func (m *FulfillmentMetrics) ObserveVoid(outcome string, units int) {
	if m == nil || m.voids == nil {
		return
	}
	m.voids.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome == OutcomeOK && units > 0 {
		m.stockMoved.WithLabelValues("released").Add(float64(units))
	}
}

// ObserveStatusUpdate records one order status update attempt.
func (m *FulfillmentMetrics) ObserveStatusUpdate(status, outcome string) {
	if m == nil || m.statusUpdates == nil {
		return
	}
	m.statusUpdates.WithLabelValues(normalizeLabel(status), normalizeLabel(outcome)).Inc()
}
