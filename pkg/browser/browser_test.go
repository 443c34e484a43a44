package browser_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/browser/adapters/sim"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/script"
	"github.com/odvcencio/reqguard/pkg/telemetry"
)

func TestActionError(t *testing.T) {
	err := browser.NewActionError("click", locator.ID("ajax"), browser.ErrElementNotFound)
	assert.Equal(t, "browser click id=ajax: element not found", err.Error())
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	wrapped := fmt.Errorf("guard: %w", err)
	assert.True(t, browser.IsActionError(wrapped))
	assert.False(t, browser.IsActionError(errors.New("plain")))

	bare := browser.NewActionError("evaluate", locator.Locator{}, errors.New("boom"))
	assert.Equal(t, "browser evaluate: boom", bare.Error())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, browser.IsRetryableError(nil))
	assert.True(t, browser.IsRetryableError(browser.ErrOperationTimeout))
	assert.True(t, browser.IsRetryableError(browser.NewActionError("click", locator.ID("x"), browser.ErrElementNotFound)))
	assert.False(t, browser.IsRetryableError(browser.ErrSessionClosed))
}

func TestSessionConfigNormalize(t *testing.T) {
	cfg := browser.SessionConfig{SessionID: "s", Viewport: browser.Viewport{Width: 800}}.Normalize()
	assert.Equal(t, "s", cfg.SessionID)
	assert.Equal(t, 800, cfg.Viewport.Width)
	assert.Equal(t, 720, cfg.Viewport.Height)
	assert.Equal(t, 1.0, cfg.Viewport.DeviceScaleFactor)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := sim.NewRuntime(nil)
	mgr := browser.NewManager(rt)

	sess, err := mgr.CreateSession(ctx, browser.SessionConfig{InitialURL: "http://fixture/"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID(), "empty session IDs are generated")

	_, err = mgr.CreateSession(ctx, browser.SessionConfig{SessionID: sess.ID()})
	assert.Error(t, err, "duplicate session IDs are rejected")

	require.NoError(t, mgr.CloseSession(sess.ID()))
	assert.ErrorIs(t, mgr.CloseSession(sess.ID()), browser.ErrSessionClosed)
	assert.ErrorIs(t, sess.Click(ctx, locator.ID("ajax")), browser.ErrSessionClosed)

	second, err := mgr.CreateSession(ctx, browser.SessionConfig{SessionID: "second"})
	require.NoError(t, err)
	require.NoError(t, mgr.Close())
	assert.ErrorIs(t, mgr.CloseSession("second"), browser.ErrSessionClosed)
	assert.ErrorIs(t, second.Click(ctx, locator.ID("ajax")), browser.ErrSessionClosed)
}

func TestNilManager(t *testing.T) {
	var mgr *browser.Manager
	_, err := mgr.CreateSession(context.Background(), browser.SessionConfig{})
	assert.ErrorIs(t, err, browser.ErrUnavailable)
	assert.NoError(t, mgr.Close())
}

func TestManagerMetricsAndEvents(t *testing.T) {
	ctx := context.Background()
	hub := telemetry.NewHub()
	defer hub.Close()
	events, unsub := hub.Subscribe()
	defer unsub()

	metrics := browser.NewMetrics()
	metrics.EnableTelemetry(hub)
	mgr := browser.NewManager(sim.NewRuntime(nil)).WithMetrics(metrics)
	defer mgr.Close()

	sess, err := mgr.CreateSession(ctx, browser.SessionConfig{SessionID: "m1"})
	require.NoError(t, err)

	require.NoError(t, sess.Navigate(ctx, "http://fixture/"))
	require.NoError(t, sess.Click(ctx, locator.ID("ajax")))
	require.Error(t, sess.Click(ctx, locator.ID("missing")))
	js := script.MustFromResource(script.TwoClicksWithTimeout).Parametrize(locator.ID("noRequest"), locator.ID("noRequest"), time.Millisecond)
	_, err = sess.Evaluate(ctx, js)
	require.NoError(t, err)
	require.NotNil(t, sess.Classifier())

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.SessionsCreated)
	assert.Equal(t, int64(1), snap.ActiveSessions)
	assert.Equal(t, int64(1), snap.NavigateCount)
	assert.Equal(t, int64(2), snap.ClickCount)
	assert.Equal(t, int64(1), snap.EvaluateCount)
	assert.Equal(t, int64(2), snap.ActionSuccessCount)
	assert.Equal(t, int64(1), snap.ActionFailureCount)
	assert.InDelta(t, 2.0/3.0, snap.ActionSuccessRate, 0.001)

	want := []telemetry.EventType{
		telemetry.EventBrowserSessionCreated,
		telemetry.EventBrowserNavigate,
		telemetry.EventBrowserClick,
		telemetry.EventBrowserActionFailed,
		telemetry.EventBrowserEvaluate,
	}
	for _, typ := range want {
		select {
		case ev := <-events:
			assert.Equal(t, typ, ev.Type)
			assert.Equal(t, "m1", ev.SessionID)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", typ)
		}
	}

	require.NoError(t, mgr.CloseSession("m1"))
	assert.Equal(t, int64(0), metrics.Snapshot().ActiveSessions)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *browser.Metrics
	m.RecordSessionCreated("x")
	m.RecordAction("x", "click", "id=a", nil, time.Millisecond)
	assert.Equal(t, browser.MetricsSnapshot{}, m.Snapshot())
	assert.Equal(t, 1.0, browser.NewMetrics().Snapshot().ActionSuccessRate)
}
