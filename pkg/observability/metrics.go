package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardOutcomes counts completed guard windows by mode, expectation, and result.
	GuardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reqguard",
			Subsystem: "guard",
			Name:      "outcomes_total",
			Help:      "Total number of guarded actions by outcome",
		},
		[]string{"mode", "expected", "observed", "result"}, // result: "pass" or "fail"
	)

	// GuardWindow records how long observation windows stayed armed.
	GuardWindow = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reqguard",
			Subsystem: "guard",
			Name:      "window_seconds",
			Help:      "Duration of guard observation windows in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"mode"},
	)

	// GuardActionErrors counts driver failures passed through guards.
	GuardActionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reqguard",
			Subsystem: "guard",
			Name:      "action_errors_total",
			Help:      "Total number of driver errors raised inside guarded actions",
		},
		[]string{"op"},
	)

	// FixtureRequests counts requests served by the fixture page server.
	FixtureRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reqguard",
			Subsystem: "fixture",
			Name:      "requests_total",
			Help:      "Total number of fixture server requests by route",
		},
		[]string{"route"},
	)
)

// RecordGuardOutcome records one decided guard window.
func RecordGuardOutcome(mode, expected, observed string, passed bool, elapsed time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	GuardOutcomes.WithLabelValues(mode, expected, observed, result).Inc()
	GuardWindow.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// RecordGuardActionError records a driver error raised inside a guard.
func RecordGuardActionError(op string) {
	GuardActionErrors.WithLabelValues(op).Inc()
}
