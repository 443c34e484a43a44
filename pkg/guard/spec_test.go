package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/reqguard/pkg/request"
)

func obs(kinds ...request.Kind) []request.Observation {
	out := make([]request.Observation, len(kinds))
	for i, k := range kinds {
		out[i] = request.Observation{Kind: k}
	}
	return out
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"strict single", Spec{Accepted: request.MustKindSet(request.XHR)}, true},
		{"strict empty", Spec{}, false},
		{"strict pair", Spec{Accepted: request.MustKindSet(request.XHR, request.HTTP)}, false},
		{"strict negative settle", Spec{Accepted: request.MustKindSet(request.XHR), Settle: -time.Second}, false},
		{"wait", Spec{Accepted: request.MustKindSet(request.XHR, request.HTTP), Mode: Wait, Timeout: time.Second, Interval: time.Millisecond}, true},
		{"wait no timeout", Spec{Accepted: request.MustKindSet(request.XHR), Mode: Wait, Interval: time.Millisecond}, false},
		{"wait interval too long", Spec{Accepted: request.MustKindSet(request.XHR), Mode: Wait, Timeout: time.Second, Interval: time.Second}, false},
		{"unknown mode", Spec{Accepted: request.MustKindSet(request.XHR), Mode: Mode(7)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidSpec), "got %v", err)
			}
		})
	}
}

func TestSpecDecide_Strict(t *testing.T) {
	spec := Spec{Accepted: request.MustKindSet(request.HTTP)}

	v, ok := spec.decide(nil, true)
	require.True(t, ok)
	assert.False(t, v.passed)
	assert.Equal(t, request.None, v.observed.Kind)

	v, _ = spec.decide(obs(request.HTTP, request.XHR), true)
	assert.True(t, v.passed)

	v, _ = spec.decide(obs(request.XHR, request.HTTP), true)
	assert.False(t, v.passed)
	assert.Equal(t, request.XHR, v.observed.Kind)
}

func TestSpecDecide_Wait(t *testing.T) {
	spec := Spec{Accepted: request.MustKindSet(request.XHR), Mode: Wait, Timeout: time.Second, Interval: time.Millisecond}

	_, ok := spec.decide(nil, false)
	assert.False(t, ok, "silence keeps the window open")

	_, ok = spec.decide(obs(request.HTTP), false)
	assert.False(t, ok, "a disallowed kind keeps the window open by default")

	v, ok := spec.decide(obs(request.HTTP, request.XHR, request.HTTP), false)
	require.True(t, ok)
	assert.True(t, v.passed)
	assert.Equal(t, request.XHR, v.observed.Kind)

	v, ok = spec.decide(obs(request.HTTP), true)
	require.True(t, ok)
	assert.False(t, v.passed)
	assert.Equal(t, request.HTTP, v.observed.Kind)

	v, _ = spec.decide(nil, true)
	assert.False(t, v.passed)
	assert.Equal(t, request.None, v.observed.Kind)

	spec.AbortOnDisallowed = true
	v, ok = spec.decide(obs(request.HTTP, request.XHR), false)
	require.True(t, ok)
	assert.False(t, v.passed)
	assert.Equal(t, request.HTTP, v.observed.Kind)
}

func TestSpecDecide_WaitAcceptingNone(t *testing.T) {
	spec := Spec{Accepted: request.MustKindSet(request.None, request.HTTP), Mode: Wait, Timeout: time.Second, Interval: time.Millisecond}

	_, ok := spec.decide(nil, false)
	assert.False(t, ok)

	v, _ := spec.decide(nil, true)
	assert.True(t, v.passed)

	v, _ = spec.decide(obs(request.XHR), true)
	assert.False(t, v.passed)
	assert.Equal(t, request.XHR, v.observed.Kind)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Wait ")
	require.NoError(t, err)
	assert.Equal(t, Wait, m)

	_, err = ParseMode("lenient")
	assert.Error(t, err)
	assert.Equal(t, "Mode(4)", Mode(4).String())
}

func TestFailureError(t *testing.T) {
	f := &Failure{Expected: request.MustKindSet(request.XHR), Observed: request.None, Mode: Wait, Elapsed: 10 * time.Second}
	assert.Equal(t, "request guard (wait): expected XHR but observed NONE within 10s", f.Error())

	f = &Failure{Expected: request.MustKindSet(request.HTTP), Observed: request.XHR, Mode: Strict, URL: "/ajax"}
	assert.Equal(t, "request guard (strict): expected HTTP but observed XHR (/ajax)", f.Error())

	wrapped := errors.Join(errors.New("step 3"), f)
	got, ok := AsFailure(wrapped)
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.False(t, IsFailure(errors.New("other")))
}
