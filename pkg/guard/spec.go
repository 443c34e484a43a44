// Package guard asserts which kind of network activity a browser action
// triggers. A Guard arms a request classifier, performs one click or script
// evaluation through a browser driver, and compares what was observed against
// the kinds its Spec accepts.
package guard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/reqguard/pkg/request"
)

// Mode selects how a guard closes its observation window.
type Mode int

const (
	// Strict closes the window as soon as the action returns and judges the
	// first observed request.
	Strict Mode = iota
	// Wait polls the window until an accepted kind appears or the timeout elapses.
	Wait
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 50 * time.Millisecond
)

// ErrInvalidSpec is returned by Validate.
var ErrInvalidSpec = errors.New("guard: invalid spec")

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "strict" or "wait".
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return Strict, nil
	case "wait":
		return Wait, nil
	default:
		return Strict, fmt.Errorf("unknown guard mode %q", raw)
	}
}

// Spec is the immutable configuration of a guard.
type Spec struct {
	Accepted request.KindSet
	Mode     Mode
	// Timeout bounds a Wait window.
	Timeout time.Duration
	// Interval is the Wait polling period.
	Interval time.Duration
	// Settle delays closing a Strict window after the action returns, for
	// drivers whose requests leave the page asynchronously.
	Settle time.Duration
	// AbortOnDisallowed fails a Wait window at the first disallowed kind
	// instead of waiting for an accepted one.
	AbortOnDisallowed bool
}

// Validate reports a Spec no guard can run with.
func (s Spec) Validate() error {
	if s.Accepted.Empty() {
		return fmt.Errorf("%w: no accepted kinds", ErrInvalidSpec)
	}
	switch s.Mode {
	case Strict:
		if _, ok := s.Accepted.Single(); !ok {
			return fmt.Errorf("%w: strict guard accepts exactly one kind, got %s", ErrInvalidSpec, s.Accepted)
		}
		if s.Settle < 0 {
			return fmt.Errorf("%w: negative settle %s", ErrInvalidSpec, s.Settle)
		}
	case Wait:
		if s.Timeout <= 0 {
			return fmt.Errorf("%w: wait timeout must be positive", ErrInvalidSpec)
		}
		if s.Interval <= 0 || s.Interval >= s.Timeout {
			return fmt.Errorf("%w: poll interval %s must be within (0, %s)", ErrInvalidSpec, s.Interval, s.Timeout)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSpec, s.Mode)
	}
	return nil
}

func (s Spec) String() string {
	if s.Mode == Wait {
		return fmt.Sprintf("wait(%s, %s)", s.Accepted, s.Timeout)
	}
	return fmt.Sprintf("strict(%s)", s.Accepted)
}

type verdict struct {
	observed request.Observation
	passed   bool
}

// decide applies the accept/reject rules to the observations of one window.
// closed reports that no more observations will arrive. ok is false while a
// Wait window must keep polling.
//
// A Strict window is judged by its first observation. A Wait window passes at
// the first accepted kind; a disallowed kind fails it immediately only with
// AbortOnDisallowed, otherwise the last one seen is reported if the window
// closes without an accepted kind.
func (s Spec) decide(observations []request.Observation, closed bool) (v verdict, ok bool) {
	if s.Mode == Strict {
		first := request.First(observations)
		return verdict{observed: first, passed: s.Accepted.Has(first.Kind)}, true
	}

	disallowed := request.Observation{Kind: request.None}
	for _, obs := range observations {
		switch {
		case obs.Kind == request.None:
			continue
		case s.Accepted.Has(obs.Kind):
			return verdict{observed: obs, passed: true}, true
		case s.AbortOnDisallowed:
			return verdict{observed: obs}, true
		default:
			disallowed = obs
		}
	}
	if !closed {
		return verdict{}, false
	}
	passed := disallowed.Kind == request.None && s.Accepted.Has(request.None)
	return verdict{observed: disallowed, passed: passed}, true
}
