package guard

import (
	"context"
	"time"

	"github.com/odvcencio/reqguard/pkg/request"
)

// Run is the record of one guarded action.
type Run struct {
	ID        string
	SessionID string
	Mode      Mode
	Expected  request.KindSet
	Observed  request.Kind
	Passed    bool
	Op        string
	Target    string
	// Error holds the driver or classifier error when the action did not
	// produce a verdict.
	Error     string
	StartedAt time.Time
	Elapsed   time.Duration
}

// Reporter persists guard runs. Reporting errors are logged, never returned
// to the guard's caller.
type Reporter interface {
	RecordRun(ctx context.Context, run Run) error
}
