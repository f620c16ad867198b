package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module. All methods are
// nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	// Registration outcomes: created, deduplicated, rejected, overflow
	Registrations *prometheus.CounterVec

	// Transfer outcomes: transferred, not_found, not_owner
	Transfers *prometheus.CounterVec

	// Rule update outcomes: updated, not_admin
	RuleUpdates *prometheus.CounterVec

	// Cache effectiveness on the read path
	CacheLookups *prometheus.CounterVec

	// Operation latency by operation name
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_registrations_total",
			Help: "Total registration attempts by outcome",
		}, []string{"outcome"}),

		Transfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_transfers_total",
			Help: "Total ownership transfer attempts by outcome",
		}, []string{"outcome"}),

		RuleUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_rule_updates_total",
			Help: "Total validation rule update attempts by outcome",
		}, []string{"outcome"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_record_cache_lookups_total",
			Help: "Record cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss"

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provenance_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementTransfer(outcome string) {
	if m != nil {
		m.Transfers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRuleUpdate(outcome string) {
	if m != nil {
		m.RuleUpdates.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RecordCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
