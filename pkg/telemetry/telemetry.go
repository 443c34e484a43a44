package telemetry

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventBrowserSessionCreated EventType = "browser.session_created"
	EventBrowserSessionClosed  EventType = "browser.session_closed"
	EventBrowserNavigate       EventType = "browser.navigate"
	EventBrowserClick          EventType = "browser.click"
	EventBrowserEvaluate       EventType = "browser.evaluate"
	EventBrowserActionFailed   EventType = "browser.action_failed"

	EventGuardArmed  EventType = "guard.armed"
	EventGuardPassed EventType = "guard.passed"
	EventGuardFailed EventType = "guard.failed"
)

// DefaultSubscriberChannelSize is the per-subscriber buffer.
const DefaultSubscriberChannelSize = 64

// Event describes guard and browser telemetry that reporters can consume.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	RunID     string         `json:"runId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fan-outs telemetry events to any number of subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string
	byID        map[string]chan Event
	bufferSize  int
	closed      bool
}

// NewHub constructs a telemetry hub.
func NewHub() *Hub {
	return NewHubWithBuffer(DefaultSubscriberChannelSize)
}

// NewHubWithBuffer constructs a hub whose subscriber channels hold size events.
func NewHubWithBuffer(size int) *Hub {
	if size <= 0 {
		size = DefaultSubscriberChannelSize
	}
	return &Hub{
		subscribers: make(map[chan Event]string),
		byID:        make(map[string]chan Event),
		bufferSize:  size,
	}
}

// Publish notifies all subscribers of an event. Non-blocking; drops if buffer full.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if subscriber can't keep up; guards never block on reporting.
		}
	}
}

// Subscribe returns a channel that will receive future events and a cleanup func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch, id := h.SubscribeWithID()
	return ch, func() { h.Unsubscribe(id) }
}

// SubscribeWithID registers a subscriber and returns its channel and ID.
func (h *Hub) SubscribeWithID() (<-chan Event, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, ""
	}
	ch := make(chan Event, h.bufferSize)
	id := ulid.Make().String()
	h.subscribers[ch] = id
	h.byID[id] = ch
	return ch, id
}

// Unsubscribe removes a subscriber by ID. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.byID[id]
	if !ok {
		return
	}
	delete(h.byID, id)
	delete(h.subscribers, ch)
	close(ch)
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
	h.byID = make(map[string]chan Event)
}
