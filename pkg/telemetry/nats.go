package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig configures event forwarding.
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
	Timeout time.Duration
}

// NATSForwarder republishes hub events as JSON on a NATS subject.
// The event type is appended to the subject, e.g. "reqguard.events.guard.failed".
type NATSForwarder struct {
	pub     Publisher
	subject string
	conn    *nats.Conn

	mu      sync.Mutex
	unsub   func()
	done    chan struct{}
	errors  int
	lastErr error
}

// DialNATS connects to NATS and returns a forwarder that owns the connection.
func DialNATS(cfg NATSConfig) (*NATSForwarder, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "reqguard"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	fwd := NewNATSForwarder(conn, cfg.Subject)
	fwd.conn = conn
	return fwd, nil
}

// NewNATSForwarder forwards to an existing publisher.
func NewNATSForwarder(pub Publisher, subject string) *NATSForwarder {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = "reqguard.events"
	}
	return &NATSForwarder{pub: pub, subject: subject}
}

// Attach starts forwarding events from hub until Close is called.
func (f *NATSForwarder) Attach(hub *Hub) {
	ch, unsub := hub.Subscribe()
	done := make(chan struct{})
	f.mu.Lock()
	f.unsub = unsub
	f.done = done
	f.mu.Unlock()

	go func() {
		defer close(done)
		for event := range ch {
			f.forward(event)
		}
	}()
}

func (f *NATSForwarder) forward(event Event) {
	data, err := json.Marshal(event)
	if err == nil {
		err = f.pub.Publish(f.subject+"."+string(event.Type), data)
	}
	if err != nil {
		f.mu.Lock()
		f.errors++
		f.lastErr = err
		f.mu.Unlock()
	}
}

// Errors returns the number of failed publishes and the last error.
func (f *NATSForwarder) Errors() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors, f.lastErr
}

// Close stops forwarding, waits for in-flight events, and drains an owned connection.
func (f *NATSForwarder) Close() error {
	f.mu.Lock()
	unsub, done := f.unsub, f.done
	f.unsub, f.done = nil, nil
	f.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if done != nil {
		<-done
	}
	if f.conn != nil {
		return f.conn.Drain()
	}
	return nil
}
