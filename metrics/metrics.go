package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route pattern
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_hub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tournament_hub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tournament_hub_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	// RateLimiterRejections counts requests rejected by the OTP rate limiter
	RateLimiterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_hub_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
		[]string{"scope"},
	)

	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_hub_otp_issued_total",
			Help: "One-time codes issued by kind",
		},
		[]string{"kind"},
	)

	// OTPVerifications counts verification attempts by kind and outcome (ok, invalid_code, expired, ...)
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_hub_otp_verifications_total",
			Help: "One-time code verification attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ApplicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tournament_hub_applications_submitted_total",
			Help: "Team applications submitted",
		},
	)

	ApplicantTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_hub_applicant_transitions_total",
			Help: "Applicant status transitions by target status and outcome",
		},
		[]string{"to", "outcome"},
	)

	RegistrationsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tournament_hub_registrations_closed_total",
			Help: "Tournaments whose registration window was closed by the scheduler",
		},
	)
)

// Outcome maps an error to a short label value.
func Outcome(err error, kind func(error) string) string {
	if err == nil {
		return "ok"
	}
	return kind(err)
}
