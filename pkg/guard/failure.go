package guard

import (
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/reqguard/pkg/request"
)

// Failure reports that a guarded action produced a request kind its guard
// does not accept. Observed is None when nothing fired before the window closed.
type Failure struct {
	Expected request.KindSet
	Observed request.Kind
	Mode     Mode
	Elapsed  time.Duration
	// URL is the address of the observed request, when known.
	URL string
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("request guard (%s): expected %s but observed %s", f.Mode, f.Expected, f.Observed)
	if f.Mode == Wait && f.Observed == request.None {
		msg += fmt.Sprintf(" within %s", f.Elapsed.Round(time.Millisecond))
	}
	if f.URL != "" {
		msg += " (" + f.URL + ")"
	}
	return msg
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsFailure reports whether err is a guard failure rather than a driver or
// classifier error.
func IsFailure(err error) bool {
	_, ok := AsFailure(err)
	return ok
}
