// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "bilancio",
	Subsystem: "aggregation",
	Name:      "duration_seconds",
	Help:      "Time spent computing a ledger, trial balance, budget or summary.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var SkippedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "journal",
	Name:      "skipped_records_total",
	Help:      "Transaction records skipped during a journal build, by reason.",
}, []string{"reason"})

var JournalEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "bilancio",
	Subsystem: "journal",
	Name:      "entries",
	Help:      "Entries in the most recently built journal.",
})

var Imbalances = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "trial_balance",
	Name:      "imbalances_total",
	Help:      "Trial balance currency sections whose debit and credit totals differ.",
}, []string{"currency"})

var LockAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "lock",
	Name:      "acquisitions_total",
	Help:      "Lock acquisition attempts by lock and result.",
}, []string{"lock", "result"})

var RecordsAppended = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "journal",
	Name:      "records_appended_total",
	Help:      "Transaction records appended through the write path.",
})

var Recalculations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "worker",
	Name:      "recalculations_total",
	Help:      "Recalc worker runs by result.",
}, []string{"result"})

// Lock acquisition results.
const (
	LockGranted    = "granted"
	LockNotGranted = "not_granted"
	LockSuperseded = "superseded"
	LockTimeout    = "timeout"
)

// ObserveSince records the time elapsed since start under operation.
func ObserveSince(operation string, start time.Time) {
	AggregationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "status"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bilancio",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Write requests rejected by the per-client rate limiter.",
})
