package request

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrWindowActive is returned when a second window is armed while one is pending.
	ErrWindowActive = errors.New("request: observation window already armed")
	// ErrWindowClosed is returned when observing a window that is not armed.
	ErrWindowClosed = errors.New("request: observation window not armed")
)

// Observation is one request seen during an armed window.
type Observation struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
	URL  string    `json:"url,omitempty"`
}

// Classifier observes a browser session for the duration of one action window.
//
// Arm starts a fresh window, Observe returns every non-NONE observation recorded
// since Arm in arrival order, and Disarm closes the window. Implementations must
// not alter the requests they observe.
type Classifier interface {
	Arm(ctx context.Context) error
	Observe(ctx context.Context) ([]Observation, error)
	Disarm(ctx context.Context) error
}

// Recorder is the window bookkeeping shared by classifier implementations.
// The zero value is ready to use.
type Recorder struct {
	mu           sync.Mutex
	armed        bool
	observations []Observation
	now          func() time.Time
}

// NewRecorder returns a recorder using the given clock. A nil clock uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// Arm opens a new window, discarding anything recorded before.
func (r *Recorder) Arm(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed {
		return ErrWindowActive
	}
	r.armed = true
	r.observations = nil
	return nil
}

// Disarm closes the window. Disarming a closed window is a no-op.
func (r *Recorder) Disarm(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = false
	r.observations = nil
	return nil
}

// Armed reports whether a window is open.
func (r *Recorder) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Record appends an observation when a window is open. None and records
// arriving outside a window are dropped; the return value reports whether it was kept.
func (r *Recorder) Record(kind Kind, url string) bool {
	if kind == None || !kind.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return false
	}
	at := time.Now()
	if r.now != nil {
		at = r.now()
	}
	r.observations = append(r.observations, Observation{Kind: kind, At: at, URL: url})
	return true
}

// Observe returns a copy of the observations recorded in the current window.
func (r *Recorder) Observe(context.Context) ([]Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return nil, ErrWindowClosed
	}
	out := make([]Observation, len(r.observations))
	copy(out, r.observations)
	return out, nil
}

// First returns the first observation, or a NONE observation when the list is empty.
func First(observations []Observation) Observation {
	for _, obs := range observations {
		if obs.Kind != None {
			return obs
		}
	}
	return Observation{Kind: None}
}
