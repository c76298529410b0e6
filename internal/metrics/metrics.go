// Package metrics defines the gateway's Prometheus collectors.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for request/response size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestSize observes request body size in bytes.
	HTTPRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_size_bytes",
			Help:    "Request body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize observes response body size in bytes.
	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_response_size_bytes",
			Help:    "Response body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)
)

// Replication engine metrics. ReplicationOperationsTotal,
// PrimaryElectionLatency and ConsistencyViolationsTotal are registered by
// Register, but no code in this module records to them: the replication
// engine reports per-backend outcomes, election latencies and consistency
// violations through slog only, so these series carry no samples.
var (
	// ReplicationOperationsTotal counts per-backend operation outcomes,
	// labeled by the operation name (e.g. "get_object"), the backend name,
	// the configured read or write mode that drove the call, and the
	// outcome ("success", "not_found", "error").
	ReplicationOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_replication_operations_total",
			Help: "Replication engine operations by backend, mode, and outcome",
		},
		[]string{"operation", "backend", "mode", "outcome"},
	)

	// PrimaryElectionLatency observes the per-backend median probe latency
	// measured during latency-based primary election, labeled by backend.
	PrimaryElectionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_primary_election_latency_seconds",
			Help:    "Per-backend median head_bucket probe latency during primary election",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// ConsistencyViolationsTotal counts AllConsistent disagreements detected
	// between backends, labeled by operation.
	ConsistencyViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_consistency_violations_total",
			Help: "AllConsistent read-mode disagreements detected between backends",
		},
		[]string{"operation"},
	)

	// BytesReceivedTotal counts total bytes received in PUT request bodies.
	BytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_bytes_received_total",
			Help: "Total bytes received in PUT request bodies",
		},
	)

	// BytesSentTotal counts total bytes sent in GET response bodies.
	BytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_bytes_sent_total",
			Help: "Total bytes sent in GET response bodies",
		},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPRequestSize,
			HTTPResponseSize,
			ReplicationOperationsTotal,
			PrimaryElectionLatency,
			ConsistencyViolationsTotal,
			BytesReceivedTotal,
			BytesSentTotal,
		)
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from individual bucket/object names.
func NormalizePath(path string) string {
	switch path {
	case "/metrics":
		return "/metrics"
	case "/", "":
		return "/"
	}

	trimmed := path
	if len(trimmed) > 0 && trimmed[0] == '/' {
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return "/"
	}

	idx := strings.IndexByte(trimmed, '/')
	if idx < 0 {
		return "/{bucket}"
	}
	keyPart := trimmed[idx+1:]
	if keyPart == "" {
		return "/{bucket}"
	}
	return "/{bucket}/{key}"
}
