// Package metrics defines custom Prometheus metrics for NoteStash.
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
			Name: "notestash_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notestash_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize observes response body size in bytes.
	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notestash_http_response_size_bytes",
			Help:    "Response body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)
)

// Note and blob operation metrics.
var (
	// NoteOperationsTotal counts note operations by operation name and status.
	NoteOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notestash_note_operations_total",
			Help: "Note operations by type",
		},
		[]string{"operation", "status"},
	)

	// BlobBytesWrittenTotal counts bytes written to the active blob backend.
	BlobBytesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notestash_blob_bytes_written_total",
			Help: "Total bytes written to blob storage",
		},
	)

	// BlobBytesReadTotal counts bytes streamed out of blob backends.
	BlobBytesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notestash_blob_bytes_read_total",
			Help: "Total bytes read from blob storage",
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
			HTTPResponseSize,
			NoteOperationsTotal,
			BlobBytesWrittenTotal,
			BlobBytesReadTotal,
		)
		// Initialize NoteOperationsTotal so it appears in /metrics output
		// even before any note operations have been performed.
		NoteOperationsTotal.WithLabelValues("upload", "success")
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from individual note IDs and subjects.
func NormalizePath(path string) string {
	switch path {
	case "/health", "/metrics", "/openapi.json", "/", "":
		if path == "" {
			return "/"
		}
		return path
	}

	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}

	switch {
	case path == "/api/auth/signup" || path == "/api/auth/login":
		return path
	case path == "/api/notes" || path == "/api/notes/":
		return "/api/notes"
	case path == "/api/notes/upload":
		return path
	case strings.HasPrefix(path, "/api/notes/subject/"):
		return "/api/notes/subject/{subject}"
	case strings.HasPrefix(path, "/api/notes/semester/"):
		return "/api/notes/semester/{sem}"
	case strings.HasPrefix(path, "/api/notes/public/file/"):
		return "/api/notes/public/file/{id}"
	case strings.HasPrefix(path, "/api/notes/file/"):
		return "/api/notes/file/{id}"
	case strings.HasPrefix(path, "/api/notes/view/"):
		return "/api/notes/view/{id}"
	case strings.HasPrefix(path, "/api/notes/") && strings.HasSuffix(path, "/rate"):
		return "/api/notes/{id}/rate"
	case strings.HasPrefix(path, "/api/notes/"):
		return "/api/notes/{id}"
	}

	return "/other"
}
