package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submux_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submux_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_jobs_total",
			Help: "Mux jobs by mode and terminal result",
		},
		[]string{"mode", "result"}, // result: completed, failed, cancelled
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submux_job_duration_seconds",
			Help:    "Wall-clock duration of mux jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600, 7200},
		},
		[]string{"mode"},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submux_jobs_running",
			Help: "Number of encoder processes currently running",
		},
	)

	JobsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submux_jobs_waiting",
			Help: "Number of jobs waiting for a free encoder slot",
		},
	)

	EncoderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_encoder_failures_total",
			Help: "Encoder failures by classified cause",
		},
		[]string{"class"},
	)
)

// Intake metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_uploads_total",
			Help: "Uploads by asset kind, source, and result",
		},
		[]string{"kind", "source", "result"}, // source: file, url; result: accepted, rejected
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_upload_bytes_total",
			Help: "Bytes accepted into the download directory",
		},
		[]string{"kind"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submux_deliveries_total",
			Help: "Output deliveries by result",
		},
		[]string{"result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submux_sessions_active",
			Help: "Number of stored user sessions",
		},
	)
)

// Job result labels.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// ObserveJob records a terminal job transition.
func ObserveJob(mode, result string, elapsed time.Duration) {
	JobsTotal.WithLabelValues(mode, result).Inc()
	JobDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveUpload records an intake decision.
func ObserveUpload(kind, source string, accepted bool, size int64) {
	result := "rejected"
	if accepted {
		result = "accepted"
		if size > 0 {
			UploadBytesTotal.WithLabelValues(kind).Add(float64(size))
		}
	}
	UploadsTotal.WithLabelValues(kind, source, result).Inc()
}

// ObserveDelivery records a delivery outcome.
func ObserveDelivery(err error) {
	if err != nil {
		DeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}
	DeliveriesTotal.WithLabelValues("delivered").Inc()
}
