// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for distributed tracing and with
// Prometheus for metrics collection across the queue, ingestion
// pipeline, vendor selector, and vendor performance store.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// JobsEnqueuedTotal counts jobs enqueued by queue name.
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"queue"},
	)
	// JobsProcessing is a gauge of jobs currently RUNNING, by queue name.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"queue"},
	)
	// JobsCompletedTotal counts jobs acked by queue name.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"queue"},
	)
	// JobsRetriedTotal counts jobs nacked and rescheduled, by queue name.
	JobsRetriedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_retried_total",
			Help: "Total number of job retries scheduled",
		},
		[]string{"queue"},
	)
	// JobsDeadLetteredTotal counts jobs that exhausted retries, by queue name.
	JobsDeadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dead_lettered_total",
			Help: "Total number of jobs moved to the dead-letter queue",
		},
		[]string{"queue"},
	)
	// JobsReapedTotal counts jobs reclaimed from expired locks.
	JobsReapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_reaped_total",
			Help: "Total number of jobs reclaimed by the reaper after lock expiry",
		},
		[]string{"queue"},
	)

	// PipelineStageDuration records the duration of each ingestion stage.
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Ingestion pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "outcome"},
	)
	// ArtifactsByStatus is a gauge snapshot of artifact counts by status.
	ArtifactsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artifacts_by_status",
			Help: "Number of uploaded artifacts currently in each status",
		},
		[]string{"status"},
	)

	// SelectorScoreHistogram records the composite score distribution of candidates considered.
	SelectorScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selector_composite_score",
			Help:    "Distribution of vendor composite scores considered by the selector",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	// SelectorEligibleVendors records how many vendors were eligible per selection call.
	SelectorEligibleVendors = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selector_eligible_vendors",
			Help:    "Number of eligible vendors found per selection call",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// VendorMetricsUpdatesTotal counts applied vendor-metrics events by kind.
	VendorMetricsUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_metrics_updates_total",
			Help: "Total number of vendor performance events applied",
		},
		[]string{"event_kind"},
	)
	// VendorReliabilityScore is a gauge of the last-computed reliability score per vendor.
	VendorReliabilityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vendor_reliability_score",
			Help: "Most recently computed vendor reliability score",
		},
		[]string{"vendor_id"},
	)

	// OutboxPendingRows is a gauge of undispatched outbox rows.
	OutboxPendingRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_rows",
			Help: "Number of outbox rows awaiting dispatch",
		},
	)
	// OutboxDispatchedTotal counts outbox rows successfully dispatched.
	OutboxDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatched_total",
			Help: "Total number of outbox rows dispatched",
		},
		[]string{"target"},
	)
	// OutboxDispatchFailedTotal counts outbox dispatch attempts that failed and will be retried.
	OutboxDispatchFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_failed_total",
			Help: "Total number of outbox dispatch attempts that failed",
		},
		[]string{"target"},
	)

	// CircuitBreakerStatus tracks circuit breaker state by name (0=closed, 1=half-open, 2=open).
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsRetriedTotal)
	prometheus.MustRegister(JobsDeadLetteredTotal)
	prometheus.MustRegister(JobsReapedTotal)
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(ArtifactsByStatus)
	prometheus.MustRegister(SelectorScoreHistogram)
	prometheus.MustRegister(SelectorEligibleVendors)
	prometheus.MustRegister(VendorMetricsUpdatesTotal)
	prometheus.MustRegister(VendorReliabilityScore)
	prometheus.MustRegister(OutboxPendingRows)
	prometheus.MustRegister(OutboxDispatchedTotal)
	prometheus.MustRegister(OutboxDispatchFailedTotal)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// EnqueueJob increments the enqueued jobs counter for the given queue.
func EnqueueJob(queue string) {
	JobsEnqueuedTotal.WithLabelValues(queue).Inc()
}

// StartProcessingJob increments the processing gauge for the given queue.
func StartProcessingJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Inc()
}

// CompleteJob marks a job complete: decrements processing, increments completed.
func CompleteJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsCompletedTotal.WithLabelValues(queue).Inc()
}

// RetryJob marks a job retried: decrements processing, increments retried.
func RetryJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsRetriedTotal.WithLabelValues(queue).Inc()
}

// DeadLetterJob marks a job dead-lettered: decrements processing, increments dead-lettered.
func DeadLetterJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsDeadLetteredTotal.WithLabelValues(queue).Inc()
}

// ReapJob increments the reaped counter for the given queue.
func ReapJob(queue string) {
	JobsReapedTotal.WithLabelValues(queue).Inc()
}

// ObserveStage records a pipeline stage's duration and outcome.
func ObserveStage(stage, outcome string, seconds float64) {
	PipelineStageDuration.WithLabelValues(stage, outcome).Observe(seconds)
}

// ObserveSelection records the eligible-vendor count and each candidate's score.
func ObserveSelection(eligible int, scores []float64) {
	SelectorEligibleVendors.Observe(float64(eligible))
	for _, s := range scores {
		SelectorScoreHistogram.Observe(s)
	}
}

// RecordVendorMetricsEvent increments the per-kind vendor metrics event counter.
func RecordVendorMetricsEvent(kind string) {
	VendorMetricsUpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordVendorReliability sets the gauge for a vendor's latest reliability score.
func RecordVendorReliability(vendorID string, score float64) {
	VendorReliabilityScore.WithLabelValues(vendorID).Set(score)
}

// RecordOutboxPending sets the gauge of undispatched outbox rows observed in
// the last relay pass.
func RecordOutboxPending(n int) {
	OutboxPendingRows.Set(float64(n))
}

// RecordOutboxDispatch increments the dispatched (or failed) counter for a target.
func RecordOutboxDispatch(target string, ok bool) {
	if ok {
		OutboxDispatchedTotal.WithLabelValues(target).Inc()
		return
	}
	OutboxDispatchFailedTotal.WithLabelValues(target).Inc()
}

// RecordCircuitBreakerStatus records circuit breaker state by name.
func RecordCircuitBreakerStatus(name string, status int) {
	CircuitBreakerStatus.WithLabelValues(name).Set(float64(status))
}
