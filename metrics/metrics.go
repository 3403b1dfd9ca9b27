package metrics

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_tokens_issued_total",
		Help: "Total number of tokens signed, labelled by scope.",
	}, []string{"scope"})

	TokensRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_tokens_revoked_total",
		Help: "Total number of revocation entries written, labelled by reason.",
	}, []string{"reason"})

	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_guard_decisions_total",
		Help: "Authorization pipeline outcomes, labelled by principal kind and outcome.",
	}, []string{"kind", "outcome"})

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_login_attempts_total",
		Help: "Login attempts, labelled by outcome.",
	}, []string{"outcome"})

	OTPsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "here_otps_issued_total",
		Help: "Total number of one-time codes generated.",
	})

	RSVPs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_rsvps_total",
		Help: "RSVP attempts, labelled by outcome.",
	}, []string{"outcome"})

	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_checkins_total",
		Help: "Check-in attempts, labelled by outcome and lateness.",
	}, []string{"outcome", "late"})

	CheckInDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "here_checkin_distance_meters",
		Help:    "Distance between attendee and event location on verified check-ins.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 25000},
	})

	EventTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "here_event_transitions_total",
		Help: "Event lifecycle transitions and no-show markings, labelled by kind.",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "here_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds, labelled by route name and status.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"route", "status"})
)

// Outcome collapses an error into a low cardinality metric label
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return strings.ToLower(richErr.TextCode)
	}
	return "error"
}
