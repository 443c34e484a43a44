package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Manager tracks active browser sessions for a runtime.
type Manager struct {
	runtime  Runtime
	metrics  *Metrics
	sessions map[string]Session
	mu       sync.Mutex
}

// NewManager creates a Manager backed by the provided runtime.
func NewManager(runtime Runtime) *Manager {
	return &Manager{
		runtime:  runtime,
		sessions: make(map[string]Session),
	}
}

// WithMetrics records session lifecycle and driver actions on m. Sessions
// created afterwards are wrapped with Instrument.
func (m *Manager) WithMetrics(metrics *Metrics) *Manager {
	if m != nil {
		m.metrics = metrics
	}
	return m
}

// CreateSession allocates a new browser session. An empty SessionID is
// replaced with a random one.
func (m *Manager) CreateSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if m == nil || m.runtime == nil {
		return nil, ErrUnavailable
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	m.mu.Lock()
	if _, exists := m.sessions[cfg.SessionID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session already exists: %s", cfg.SessionID)
	}
	m.mu.Unlock()

	sess, err := m.runtime.NewSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		sess = Instrument(sess, m.metrics)
		m.metrics.RecordSessionCreated(sess.ID())
	}

	m.mu.Lock()
	m.sessions[cfg.SessionID] = sess
	m.mu.Unlock()
	return sess, nil
}

// CloseSession closes and removes a session.
func (m *Manager) CloseSession(sessionID string) error {
	if m == nil {
		return ErrUnavailable
	}
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok || sess == nil {
		return ErrSessionClosed
	}
	m.metrics.RecordSessionClosed(sessionID)
	return sess.Close()
}

// Close closes all sessions and releases the runtime.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]Session)
	m.mu.Unlock()

	var lastErr error
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		m.metrics.RecordSessionClosed(sess.ID())
		if err := sess.Close(); err != nil {
			lastErr = err
		}
	}
	if m.runtime != nil {
		if err := m.runtime.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
