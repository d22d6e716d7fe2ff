// Package metrics collects prometheus instruments for the engine; the
// registry is owned by the caller so tests can isolate collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's instruments.
type Metrics struct {
	QuoteFetches       *prometheus.CounterVec
	QuoteFetchDuration prometheus.Histogram
	Settlements        *prometheus.CounterVec
	Assignments        *prometheus.CounterVec
	MonitorTicks       *prometheus.CounterVec
	Notifications      prometheus.Counter
}

// New registers the instrument set on the given registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		QuoteFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcdesk_quote_fetches_total",
				Help: "Total order-book fetches.",
			},
			[]string{"status"},
		),
		QuoteFetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "otcdesk_quote_fetch_duration_seconds",
				Help:    "Order-book fetch duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcdesk_settlements_total",
				Help: "Total settlement calculations by outcome.",
			},
			[]string{"status"},
		),
		Assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcdesk_assignments_total",
				Help: "Total dispatch assignments.",
			},
			[]string{"strategy", "status"},
		),
		MonitorTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcdesk_monitor_ticks_total",
				Help: "Total alert monitor ticks.",
			},
			[]string{"status"},
		),
		Notifications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "otcdesk_notifications_total",
				Help: "Total alert notifications emitted.",
			},
		),
	}

	registry.MustRegister(
		m.QuoteFetches,
		m.QuoteFetchDuration,
		m.Settlements,
		m.Assignments,
		m.MonitorTicks,
		m.Notifications,
	)
	return m
}

// ObserveQuoteFetch records one order-book fetch outcome and duration.
func (m *Metrics) ObserveQuoteFetch(status string, seconds float64) {
	if m == nil {
		return
	}
	m.QuoteFetches.WithLabelValues(status).Inc()
	m.QuoteFetchDuration.Observe(seconds)
}

// IncTick records one monitor tick outcome.
func (m *Metrics) IncTick(status string) {
	if m == nil {
		return
	}
	m.MonitorTicks.WithLabelValues(status).Inc()
}

// IncNotification records one emitted notification.
func (m *Metrics) IncNotification() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}

// IncSettlement records one settlement outcome.
func (m *Metrics) IncSettlement(status string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(status).Inc()
}

// IncAssignment records one dispatch outcome.
func (m *Metrics) IncAssignment(strategy, status string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(strategy, status).Inc()
}
