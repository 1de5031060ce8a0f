// Package metrics provides Prometheus metrics for the fern pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchPagesTotal tracks pages fetched from the provider
	FetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Total number of pages fetched from the provider",
		},
		[]string{"stream"},
	)

	// FetchRecordsTotal tracks raw reports fetched from the provider
	FetchRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "fetch",
			Name:      "records_total",
			Help:      "Total number of raw reports fetched from the provider",
		},
		[]string{"stream"},
	)

	// FetchRetriesTotal tracks fetch attempts that had to be retried
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of transient fetch failures that were retried",
		},
		[]string{"stream"},
	)

	// PublishedRecordsTotal tracks raw reports published to the bus
	PublishedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "publish",
			Name:      "records_total",
			Help:      "Total number of raw reports published to the stream bus",
		},
		[]string{"topic", "status"},
	)

	// PublishDuration tracks publish batch duration
	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "publish",
			Name:      "batch_duration_seconds",
			Help:      "Duration of publish batches in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CursorCommitsTotal tracks cursor commits by outcome
	CursorCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cursor",
			Name:      "commits_total",
			Help:      "Total number of cursor commits by outcome",
		},
		[]string{"stream", "outcome"},
	)

	// TransformReportsTotal tracks transformed reports by outcome
	TransformReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "transform",
			Name:      "reports_total",
			Help:      "Total number of reports transformed by outcome",
		},
		[]string{"outcome"},
	)

	// ValidationEventsTotal tracks records skipped or dropped by validation
	ValidationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "transform",
			Name:      "validation_events_total",
			Help:      "Total number of validation events by family",
		},
		[]string{"family"},
	)

	// DeliveriesTotal tracks family deliveries by outcome
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Total number of family deliveries by outcome",
		},
		[]string{"family", "outcome"},
	)

	// DeliveryRetriesTotal tracks delivery attempts that had to be retried
	DeliveryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "fanout",
			Name:      "retries_total",
			Help:      "Total number of transient delivery failures that were retried",
		},
		[]string{"family"},
	)

	// DLQEntriesTotal tracks records routed to the dead letter queue
	DLQEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dlq",
			Name:      "entries_total",
			Help:      "Total number of entries added to the dead letter queue",
		},
		[]string{"family"},
	)
)

// RecordFetchPage records a fetched page and its record count
func RecordFetchPage(stream string, records int) {
	FetchPagesTotal.WithLabelValues(stream).Inc()
	FetchRecordsTotal.WithLabelValues(stream).Add(float64(records))
}

// RecordFetchRetry records a retried fetch attempt
func RecordFetchRetry(stream string) {
	FetchRetriesTotal.WithLabelValues(stream).Inc()
}

// RecordPublish records a publish batch
func RecordPublish(topic, status string, records int, durationSeconds float64) {
	PublishedRecordsTotal.WithLabelValues(topic, status).Add(float64(records))
	PublishDuration.Observe(durationSeconds)
}

// RecordCursorCommit records a cursor commit outcome
func RecordCursorCommit(stream, outcome string) {
	CursorCommitsTotal.WithLabelValues(stream, outcome).Inc()
}

// RecordTransform records a transformed report outcome
func RecordTransform(outcome string) {
	TransformReportsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationEvent records a skipped or dropped record
func RecordValidationEvent(family string) {
	ValidationEventsTotal.WithLabelValues(family).Inc()
}

// RecordDelivery records a family delivery outcome
func RecordDelivery(family, outcome string) {
	DeliveriesTotal.WithLabelValues(family, outcome).Inc()
}

// RecordDeliveryRetry records a retried delivery attempt
func RecordDeliveryRetry(family string) {
	DeliveryRetriesTotal.WithLabelValues(family).Inc()
}

// RecordDLQEntry records an entry added to the dead letter queue
func RecordDLQEntry(family string) {
	DLQEntriesTotal.WithLabelValues(family).Inc()
}
