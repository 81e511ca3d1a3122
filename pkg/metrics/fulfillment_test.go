package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)

	m.ObserveCommit("sale", OutcomeOK, 20*time.Millisecond, 3)
	m.ObserveCommit("sale", "INSUFFICIENT_STOCK", 5*time.Millisecond, 4)
	m.ObserveVoid(OutcomeOK, 3)
	m.ObserveVoid("ALREADY_VOIDED", 0)
	m.ObserveStatusUpdate("shipped", OutcomeOK)

	require.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("sale", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("sale", "INSUFFICIENT_STOCK")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.stockMoved.WithLabelValues("reserved")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.stockMoved.WithLabelValues("released")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.voids.WithLabelValues("ALREADY_VOIDED")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.statusUpdates.WithLabelValues("shipped", OutcomeOK)))
	require.Equal(t, 2, testutil.CollectAndCount(m.commitDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *FulfillmentMetrics
	m.ObserveCommit("order", OutcomeOK, time.Second, 1)
	m.ObserveVoid(OutcomeOK, 1)
	m.ObserveStatusUpdate("pending", OutcomeOK)

	NewFulfillmentMetrics(nil).ObserveCommit("order", OutcomeOK, time.Second, 1)

	var h *HTTPMetrics
	h.Observe("GET", "/x", 200, time.Millisecond)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/v1/transactions", 201, 15*time.Millisecond)
	m.Observe("POST", "/api/v1/transactions", 409, 3*time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/transactions", "201")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/transactions", "409")))
}
