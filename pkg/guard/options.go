package guard

import (
	"time"

	"github.com/odvcencio/reqguard/pkg/logging"
	"github.com/odvcencio/reqguard/pkg/telemetry"
)

type options struct {
	logger    *logging.Logger
	hub       *telemetry.Hub
	reporter  Reporter
	sessionID string

	timeout           time.Duration
	interval          time.Duration
	settle            time.Duration
	abortOnDisallowed bool
}

func defaultOptions() options {
	return options{
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
	}
}

// Option configures guards built by New and Factory.
type Option func(*options)

// WithLogger logs guard outcomes to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHub publishes guard.armed, guard.passed and guard.failed events.
func WithHub(hub *telemetry.Hub) Option {
	return func(o *options) {
		o.hub = hub
	}
}

// WithReporter records every run.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithSessionID tags logs, events and runs with the browser session.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithTimeout sets the Wait budget used by factory constructors.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterval sets the Wait polling period used by factory constructors.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSettle sets the Strict settle delay used by factory constructors.
func WithSettle(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.settle = d
		}
	}
}

// WithAbortOnDisallowed makes factory Wait guards fail at the first disallowed kind.
func WithAbortOnDisallowed(abort bool) Option {
	return func(o *options) {
		o.abortOnDisallowed = abort
	}
}
