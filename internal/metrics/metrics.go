// Package metrics exposes Prometheus instruments for settlement.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// OutcomeOK labels a successful operation; failures are labelled with
// their error kind.
const OutcomeOK = "ok"

var Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fundflow",
	Subsystem: "settlement",
	Name:      "operations_total",
	Help:      "Settlement operations by operation and outcome.",
}, []string{"operation", "outcome"})

var SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "fundflow",
	Subsystem: "settlement",
	Name:      "duration_seconds",
	Help:      "Wall time of settlement operations including retries.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var ConflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fundflow",
	Subsystem: "settlement",
	Name:      "conflict_retries_total",
	Help:      "Store transactions retried after a write conflict.",
}, []string{"operation"})

var RevenueCollected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fundflow",
	Subsystem: "revenue",
	Name:      "collected_total",
	Help:      "Platform revenue collected in base currency units, by type.",
}, []string{"type"})

var AuditLogFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fundflow",
	Subsystem: "audit",
	Name:      "write_failures_total",
	Help:      "Best-effort savings and withdrawal log writes that failed after commit.",
}, []string{"log"})

// ObserveSettlement records the outcome and latency of one operation.
func ObserveSettlement(operation, outcome string, start time.Time) {
	Settlements.WithLabelValues(operation, outcome).Inc()
	SettlementDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddRevenue counts a collected fee or penalty.
func AddRevenue(revenueType string, amount decimal.Decimal) {
	if amount.Sign() <= 0 {
		return
	}
	RevenueCollected.WithLabelValues(revenueType).Add(amount.InexactFloat64())
}
