// Package metrics provides Prometheus metrics for fern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArtifactReadsTotal tracks dbt artifact reads by outcome
	ArtifactReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "artifacts",
			Name:      "reads_total",
			Help:      "Total number of dbt artifact reads by status",
		},
		[]string{"status"},
	)

	// ArtifactReadDuration tracks manifest + catalog parse time in seconds
	ArtifactReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "artifacts",
			Name:      "read_duration_seconds",
			Help:      "Duration of dbt artifact reads in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// UnresolvedReferencesTotal tracks relationship tests pointing at unknown models
	UnresolvedReferencesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "artifacts",
			Name:      "unresolved_references_total",
			Help:      "Total number of relationship test references that did not resolve to a model",
		},
	)

	// GraphLoadsTotal tracks merged graph builds by status
	GraphLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "loads_total",
			Help:      "Total number of merged graph loads by status",
		},
		[]string{"status"},
	)

	// SavesTotal tracks data model saves by outcome (ok, conflict, validation_error, io_error)
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "store",
			Name:      "saves_total",
			Help:      "Total number of data model saves by status",
		},
		[]string{"status"},
	)

	// InferredRelationshipsTotal tracks relationships proposed by inference
	InferredRelationshipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "inference",
			Name:      "relationships_total",
			Help:      "Total number of inferred relationships by origin and outcome",
		},
		[]string{"origin", "outcome"},
	)

	// SchemaTestsPushedTotal tracks relationship tests written to dbt schema files
	SchemaTestsPushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "schema",
			Name:      "tests_pushed_total",
			Help:      "Total number of relationship tests pushed to dbt schema files by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequestsTotal tracks API requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
