package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_sessions_total",
			Help: "Parking sessions by lifecycle event and outcome",
		},
		[]string{"event", "outcome"},
	)

	AmountChargedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parking_amount_charged_total",
			Help: "Sum of amounts due computed at exit",
		},
	)

	VehiclesPresent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parking_vehicles_present",
			Help: "Vehicles with an open session",
		},
	)

	BoardConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parking_board_connections",
			Help: "Connected display boards",
		},
	)

	ReceiptEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_receipt_events_published_total",
			Help: "Receipt events published to the broker",
		},
		[]string{"action", "status"},
	)
)

// RecordHTTPMetrics records one served request.
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordSession counts an entry or exit attempt.
func RecordSession(event string, err error) {
	SessionsTotal.WithLabelValues(event, outcome(err)).Inc()
}

// RecordReceiptPublish counts a broker publish attempt.
func RecordReceiptPublish(action string, err error) {
	ReceiptEventsPublished.WithLabelValues(action, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
