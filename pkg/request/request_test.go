package request

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{"none", None},
		{"NONE", None},
		{"http", HTTP},
		{"page", HTTP},
		{" Document ", HTTP},
		{"xhr", XHR},
		{"async", XHR},
		{"fetch", XHR},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseKind(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("websocket")
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "HTTP", HTTP.String())
	assert.Equal(t, "XHR", XHR.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
	assert.False(t, Kind(7).Valid())
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Kind{"kind": XHR})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"XHR"}`, string(data))

	var decoded struct {
		Kind Kind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"page"}`), &decoded))
	assert.Equal(t, HTTP, decoded.Kind)
}

func TestKindSet(t *testing.T) {
	_, err := NewKindSet()
	assert.Error(t, err, "empty set must be rejected")

	_, err = NewKindSet(Kind(9))
	assert.Error(t, err)

	set := MustKindSet(XHR, None, XHR)
	assert.True(t, set.Has(XHR))
	assert.True(t, set.Has(None))
	assert.False(t, set.Has(HTTP))
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []Kind{None, XHR}, set.Kinds())
	assert.Equal(t, "NONE|XHR", set.String())

	_, ok := set.Single()
	assert.False(t, ok)

	single, ok := MustKindSet(HTTP).Single()
	require.True(t, ok)
	assert.Equal(t, HTTP, single)
}

func TestRecorderWindowLifecycle(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewRecorder(func() time.Time { return fixed })

	assert.False(t, rec.Record(XHR, "/early"), "records before arm are dropped")

	_, err := rec.Observe(ctx)
	assert.ErrorIs(t, err, ErrWindowClosed)

	require.NoError(t, rec.Arm(ctx))
	assert.ErrorIs(t, rec.Arm(ctx), ErrWindowActive)

	assert.False(t, rec.Record(None, ""))
	assert.True(t, rec.Record(HTTP, "/page"))
	assert.True(t, rec.Record(XHR, "/ajax"))

	obs, err := rec.Observe(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, Observation{Kind: HTTP, At: fixed, URL: "/page"}, obs[0])
	assert.Equal(t, XHR, obs[1].Kind)

	require.NoError(t, rec.Disarm(ctx))
	require.NoError(t, rec.Disarm(ctx))
	assert.False(t, rec.Armed())

	require.NoError(t, rec.Arm(ctx))
	obs, err = rec.Observe(ctx)
	require.NoError(t, err)
	assert.Empty(t, obs, "a new window starts empty")
}

func TestFirst(t *testing.T) {
	assert.Equal(t, None, First(nil).Kind)
	assert.Equal(t, XHR, First([]Observation{{Kind: XHR}, {Kind: HTTP}}).Kind)
}
