package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TransfersTotal counts workflow outcomes (created, pending, cancelled).
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trakset_transfers_total",
			Help: "Transfer workflow outcomes",
		},
		[]string{"outcome"},
	)

	// ResolutionFailuresTotal counts scans of assets that could not be resolved, by reason.
	ResolutionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trakset_asset_resolution_failures_total",
			Help: "Asset identifiers that did not resolve to an active asset",
		},
		[]string{"reason"},
	)

	// NotificationsTotal counts notification jobs by kind (transfer, diagnostic) and status (sent, skipped, failed, dropped).
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trakset_notifications_total",
			Help: "Notification jobs by kind and status",
		},
		[]string{"kind", "status"},
	)

	// NotifyQueueDepth is the number of notification jobs waiting for a worker.
	NotifyQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trakset_notify_queue_depth",
			Help: "Notification jobs waiting for a worker",
		},
	)

	// DraftNotesPurged counts draft notes removed by the scheduler.
	DraftNotesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trakset_draft_notes_purged_total",
			Help: "Unattached draft notes deleted by the purge job",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	uuidPathSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration, RequestTotal,
			TransfersTotal, ResolutionFailuresTotal,
			NotificationsTotal, NotifyQueueDepth, DraftNotesPurged,
		)
	})
}

// NormalizePath reduces cardinality by replacing numeric and uuid path segments.
// E.g. /assets/123 -> /assets/{id}, /transfers/scan/<uuid>/note -> /transfers/scan/{uuid}/note.
func NormalizePath(path string) string {
	path = uuidPathSegment.ReplaceAllString(path, "/{uuid}$1")
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncTransfers increments the workflow outcome counter.
func IncTransfers(outcome string) {
	TransfersTotal.WithLabelValues(outcome).Inc()
}

// IncResolutionFailures increments the resolution failure counter for reason.
func IncResolutionFailures(reason string) {
	ResolutionFailuresTotal.WithLabelValues(reason).Inc()
}

// IncNotifications increments the notification counter.
func IncNotifications(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}
