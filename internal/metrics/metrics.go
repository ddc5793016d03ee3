package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carshare"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code class.",
		},
		[]string{"endpoint", "code"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle actions by outcome.",
		},
		[]string{"action", "outcome"},
	)

	reviewSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_submissions_total",
			Help:      "Review submissions by outcome.",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_sweep_duration_seconds",
			Help:      "Duration of lifecycle sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by a rate limiter.",
		},
		[]string{"limiter"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingTransitions, reviewSubmissions, sweepDuration, rateLimited)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// IncTransition counts one booking action; outcome is ok, conflict, invalid, not_found, forbidden or error.
func IncTransition(action, outcome string) {
	bookingTransitions.WithLabelValues(action, outcome).Inc()
}

func IncReview(outcome string) {
	reviewSubmissions.WithLabelValues(outcome).Inc()
}

func ObserveSweep(seconds float64) {
	sweepDuration.Observe(seconds)
}

func IncRateLimited(limiter string) {
	rateLimited.WithLabelValues(limiter).Inc()
}
