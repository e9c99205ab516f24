package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	scoringSubmissionsTotal prometheus.Counter
	scoringGradedTotal      *prometheus.CounterVec

	notificationsPublishedTotal *prometheus.CounterVec
	sseClientsActive            prometheus.Gauge

	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatencySecs   prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renluyen_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		scoringSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renluyen_scoring_submissions_total",
			Help: "Total number of conduct scoring records submitted by students.",
		})

		scoringGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_scoring_graded_total",
			Help: "Total number of scoring records graded, by resulting band.",
		}, []string{"band"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_notifications_published_total",
			Help: "Total number of notifications published, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "renluyen_sse_clients_active",
			Help: "Number of SSE notification streams currently open.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_upload_requests_total",
			Help: "Total number of accepted evidence uploads, by MIME type.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renluyen_upload_rejected_total",
			Help: "Total number of rejected uploads, by reason.",
		}, []string{"reason"})

		uploadLatencySecs = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "renluyen_upload_latency_seconds",
			Help:    "Latency distribution for evidence upload processing.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			scoringSubmissionsTotal, scoringGradedTotal,
			notificationsPublishedTotal, sseClientsActive,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySecs,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ScoringSubmissionsTotal exposes the counter for submitted scoring records.
func ScoringSubmissionsTotal() prometheus.Counter {
	RegisterMetrics()
	return scoringSubmissionsTotal
}

// ScoringGradedTotal exposes the per-band counter for graded records.
func ScoringGradedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringGradedTotal
}

// NotificationsPublishedTotal exposes the per-type notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// SSEClientsActive exposes the gauge of open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// UploadRequests exposes the counter for accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the histogram for upload processing time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySecs
}
