package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
	"github.com/odvcencio/reqguard/pkg/telemetry"
)

// Metrics tracks browser driver counters.
type Metrics struct {
	SessionsCreated atomic.Int64
	SessionsClosed  atomic.Int64
	ActiveSessions  atomic.Int64

	NavigateCount atomic.Int64
	ClickCount    atomic.Int64
	EvaluateCount atomic.Int64

	ActionSuccessCount atomic.Int64
	ActionFailureCount atomic.Int64
	ActionLatencySum   atomic.Int64 // nanoseconds sum for averaging

	mu  sync.RWMutex
	hub *telemetry.Hub
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// EnableTelemetry wires the metrics collector to a telemetry hub.
func (m *Metrics) EnableTelemetry(hub *telemetry.Hub) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.hub = hub
	m.mu.Unlock()
}

// RecordSessionCreated increments session creation counter.
func (m *Metrics) RecordSessionCreated(sessionID string) {
	if m == nil {
		return
	}
	m.SessionsCreated.Add(1)
	m.ActiveSessions.Add(1)
	m.publishEvent(telemetry.EventBrowserSessionCreated, sessionID, nil)
}

// RecordSessionClosed increments session close counter.
func (m *Metrics) RecordSessionClosed(sessionID string) {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(1)
	m.ActiveSessions.Add(-1)
	m.publishEvent(telemetry.EventBrowserSessionClosed, sessionID, nil)
}

// RecordNavigate increments navigation counter.
func (m *Metrics) RecordNavigate(sessionID, url string, latency time.Duration) {
	if m == nil {
		return
	}
	m.NavigateCount.Add(1)
	m.publishEvent(telemetry.EventBrowserNavigate, sessionID, map[string]any{
		"url":        url,
		"latency_ms": latency.Milliseconds(),
	})
}

// RecordAction tracks a click or evaluate outcome.
func (m *Metrics) RecordAction(sessionID, op, target string, err error, latency time.Duration) {
	if m == nil {
		return
	}
	eventType := telemetry.EventBrowserClick
	switch op {
	case "click":
		m.ClickCount.Add(1)
	case "evaluate":
		m.EvaluateCount.Add(1)
		eventType = telemetry.EventBrowserEvaluate
	}
	m.ActionLatencySum.Add(latency.Nanoseconds())
	data := map[string]any{
		"op":         op,
		"target":     target,
		"latency_ms": latency.Milliseconds(),
	}
	if err != nil {
		m.ActionFailureCount.Add(1)
		data["error"] = err.Error()
		eventType = telemetry.EventBrowserActionFailed
	} else {
		m.ActionSuccessCount.Add(1)
	}
	m.publishEvent(eventType, sessionID, data)
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	successCount := m.ActionSuccessCount.Load()
	failCount := m.ActionFailureCount.Load()
	total := successCount + failCount
	successRate := float64(1.0)
	avgLatency := time.Duration(0)
	if total > 0 {
		successRate = float64(successCount) / float64(total)
		avgLatency = time.Duration(m.ActionLatencySum.Load() / total)
	}
	return MetricsSnapshot{
		SessionsCreated:      m.SessionsCreated.Load(),
		SessionsClosed:       m.SessionsClosed.Load(),
		ActiveSessions:       m.ActiveSessions.Load(),
		NavigateCount:        m.NavigateCount.Load(),
		ClickCount:           m.ClickCount.Load(),
		EvaluateCount:        m.EvaluateCount.Load(),
		ActionSuccessCount:   successCount,
		ActionFailureCount:   failCount,
		ActionSuccessRate:    successRate,
		AverageActionLatency: avgLatency,
	}
}

func (m *Metrics) publishEvent(eventType telemetry.EventType, sessionID string, data map[string]any) {
	m.mu.RLock()
	hub := m.hub
	m.mu.RUnlock()
	if hub == nil {
		return
	}
	hub.Publish(telemetry.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	})
}

// MetricsSnapshot is a point-in-time copy of browser metrics.
type MetricsSnapshot struct {
	SessionsCreated      int64
	SessionsClosed       int64
	ActiveSessions       int64
	NavigateCount        int64
	ClickCount           int64
	EvaluateCount        int64
	ActionSuccessCount   int64
	ActionFailureCount   int64
	ActionSuccessRate    float64
	AverageActionLatency time.Duration
}

// Instrument wraps a session so every driver call is recorded on metrics.
func Instrument(sess Session, metrics *Metrics) Session {
	if sess == nil || metrics == nil {
		return sess
	}
	return &instrumentedSession{Session: sess, metrics: metrics}
}

type instrumentedSession struct {
	Session
	metrics *Metrics
}

func (s *instrumentedSession) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	err := s.Session.Navigate(ctx, url)
	if err == nil {
		s.metrics.RecordNavigate(s.ID(), url, time.Since(start))
	}
	return err
}

func (s *instrumentedSession) Click(ctx context.Context, loc locator.Locator) error {
	start := time.Now()
	err := s.Session.Click(ctx, loc)
	s.metrics.RecordAction(s.ID(), "click", loc.String(), err, time.Since(start))
	return err
}

func (s *instrumentedSession) Evaluate(ctx context.Context, js script.JavaScript) (string, error) {
	start := time.Now()
	out, err := s.Session.Evaluate(ctx, js)
	s.metrics.RecordAction(s.ID(), "evaluate", js.Name, err, time.Since(start))
	return out, err
}

func (s *instrumentedSession) Classifier() request.Classifier {
	return s.Session.Classifier()
}
