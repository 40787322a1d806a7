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

	// AuthEvents counts login, registration and password reset outcomes.
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// TransactionEvents counts transaction adds and removes by outcome.
	TransactionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_events_total",
			Help: "Transaction mutations by action and outcome",
		},
		[]string{"action", "outcome"},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, AuthEvents, TransactionEvents)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /remove/123 -> /remove/{id}.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAuth counts an authentication event, e.g. ("login", "failure").
func RecordAuth(action, outcome string) {
	AuthEvents.WithLabelValues(action, outcome).Inc()
}

// RecordTransaction counts a transaction mutation, e.g. ("remove", "not_owner").
func RecordTransaction(action, outcome string) {
	TransactionEvents.WithLabelValues(action, outcome).Inc()
}
