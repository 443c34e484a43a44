package guard

import (
	"time"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/request"
)

// Factory builds guards over one driver and classifier. Building a guard
// never touches the browser.
type Factory struct {
	driver     browser.Driver
	classifier request.Classifier
	opts       []Option
	defaults   options
}

// NewFactory returns a factory. The timeout, interval, settle and abort
// options become the defaults of the specs it builds; the rest are passed to
// every guard.
func NewFactory(driver browser.Driver, classifier request.Classifier, opts ...Option) *Factory {
	defaults := defaultOptions()
	for _, opt := range opts {
		opt(&defaults)
	}
	return &Factory{driver: driver, classifier: classifier, opts: opts, defaults: defaults}
}

// ForSession returns a factory over sess and its classifier, tagging runs
// with the session ID.
func ForSession(sess browser.Session, opts ...Option) *Factory {
	opts = append([]Option{WithSessionID(sess.ID())}, opts...)
	return NewFactory(sess, sess.Classifier(), opts...)
}

// Strict returns a guard expecting exactly kind from a single action.
func (f *Factory) Strict(kind request.Kind) (*Guard, error) {
	accepted, err := request.NewKindSet(kind)
	if err != nil {
		return nil, err
	}
	return New(f.driver, f.classifier, Spec{
		Accepted: accepted,
		Mode:     Strict,
		Settle:   f.defaults.settle,
	}, f.opts...)
}

// Wait returns a guard that waits for any of kinds within the factory timeout.
// An interval that does not fit inside the timeout is reduced to a quarter of it.
func (f *Factory) Wait(kinds ...request.Kind) (*Guard, error) {
	accepted, err := request.NewKindSet(kinds...)
	if err != nil {
		return nil, err
	}
	timeout, interval := fitInterval(f.defaults.timeout, f.defaults.interval)
	return New(f.driver, f.classifier, Spec{
		Accepted:          accepted,
		Mode:              Wait,
		Timeout:           timeout,
		Interval:          interval,
		AbortOnDisallowed: f.defaults.abortOnDisallowed,
	}, f.opts...)
}

// fitInterval returns timings that satisfy 0 < interval < timeout.
func fitInterval(timeout, interval time.Duration) (time.Duration, time.Duration) {
	if interval > 0 && interval < timeout {
		return timeout, interval
	}
	interval = max(timeout/4, time.Nanosecond)
	if interval >= timeout {
		timeout = 2 * interval
	}
	return timeout, interval
}

// NoRequest expects an action to trigger no request.
func (f *Factory) NoRequest() *Guard { return must(f.Strict(request.None)) }

// HTTP expects an action to trigger a page-level request.
func (f *Factory) HTTP() *Guard { return must(f.Strict(request.HTTP)) }

// XHR expects an action to trigger an asynchronous request.
func (f *Factory) XHR() *Guard { return must(f.Strict(request.XHR)) }

// WaitHTTP waits for a page-level request.
func (f *Factory) WaitHTTP() *Guard { return must(f.Wait(request.HTTP)) }

// WaitXHR waits for an asynchronous request.
func (f *Factory) WaitXHR() *Guard { return must(f.Wait(request.XHR)) }

// must panics on errors that only a factory built without a driver or
// classifier can produce.
func must(g *Guard, err error) *Guard {
	if err != nil {
		panic(err)
	}
	return g
}

// GuardNoRequest guards a session action expected to trigger no request.
func GuardNoRequest(sess browser.Session, opts ...Option) *Guard {
	return ForSession(sess, opts...).NoRequest()
}

// GuardHTTP guards a session action expected to trigger a page-level request.
func GuardHTTP(sess browser.Session, opts ...Option) *Guard {
	return ForSession(sess, opts...).HTTP()
}

// GuardXHR guards a session action expected to trigger an asynchronous request.
func GuardXHR(sess browser.Session, opts ...Option) *Guard {
	return ForSession(sess, opts...).XHR()
}

// WaitHTTP waits for a session script to trigger a page-level request.
func WaitHTTP(sess browser.Session, opts ...Option) *Guard {
	return ForSession(sess, opts...).WaitHTTP()
}

// WaitXHR waits for a session script to trigger an asynchronous request.
func WaitXHR(sess browser.Session, opts ...Option) *Guard {
	return ForSession(sess, opts...).WaitXHR()
}
