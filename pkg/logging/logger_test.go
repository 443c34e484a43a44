package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewLogger tests logger construction with temp directories
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		baseDir   string
		sessionID string
	}{
		{name: "valid directory and session ID", baseDir: t.TempDir(), sessionID: "test-session-123"},
		{name: "creates directories if not exist", baseDir: filepath.Join(t.TempDir(), "nested", "path"), sessionID: "session-456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.sessionID)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			defer logger.Close()

			if logger.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.minLevel, LevelInfo)
			}
			sessionFile := filepath.Join(tt.baseDir, "sessions", tt.sessionID+".jsonl")
			if _, err := os.Stat(sessionFile); os.IsNotExist(err) {
				t.Errorf("session log file not created")
			}
			if _, err := os.Stat(filepath.Join(tt.baseDir, "errors.jsonl")); os.IsNotExist(err) {
				t.Errorf("errors.jsonl not created")
			}
		})
	}
}

func TestLogger_ErrorsGoToBothFiles(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "s1")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	if err := logger.Info(CategoryGuard, "guard.passed", "ok", map[string]any{"expected": "XHR"}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if err := logger.Error(CategoryGuard, "guard.failed", "mismatch", map[string]any{"observed": "HTTP"}); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := SessionLogPath(dir, "s1"); got != filepath.Join(dir, "sessions", "s1.jsonl") {
		t.Fatalf("SessionLogPath() = %q", got)
	}
	sessionEvents, err := ReadRecentEvents(SessionLogPath(dir, "s1"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents() error = %v", err)
	}
	if len(sessionEvents) != 2 {
		t.Fatalf("session events = %d, want 2", len(sessionEvents))
	}
	if sessionEvents[0].SessionID != "s1" {
		t.Errorf("session id not defaulted: %q", sessionEvents[0].SessionID)
	}

	errorEvents, err := ReadRecentEvents(filepath.Join(dir, "errors.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents() error = %v", err)
	}
	if len(errorEvents) != 1 || errorEvents[0].EventType != "guard.failed" {
		t.Fatalf("error events = %+v", errorEvents)
	}
}

func TestLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "s1")
	logger.SetMinLevel(LevelWarn)

	_ = logger.Debug(CategoryBrowser, "browser.click", "", nil)
	_ = logger.Info(CategoryBrowser, "browser.click", "", nil)
	_ = logger.Warn(CategoryBrowser, "browser.slow", "", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var event Event
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Level != LevelWarn || event.Category != CategoryBrowser {
		t.Errorf("unexpected event %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	if err := logger.Info(CategoryGuard, "x", "", nil); err != nil {
		t.Fatalf("nil logger returned %v", err)
	}
	logger.SetMinLevel(LevelDebug)
	if err := logger.Close(); err != nil {
		t.Fatalf("nil Close returned %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel(""); err != nil || lvl != LevelInfo {
		t.Errorf("ParseLevel(\"\") = %v, %v", lvl, err)
	}
	if lvl, err := ParseLevel("debug"); err != nil || lvl != LevelDebug {
		t.Errorf("ParseLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestReadRecentEvents_Limit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "s1")
	for i := 0; i < 5; i++ {
		_ = logger.Info(CategoryGuard, "guard.passed", "", map[string]any{"i": i})
	}
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	events, err := ReadRecentEvents(path, 2)
	if err != nil {
		t.Fatalf("ReadRecentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if got := events[1].Details["i"]; got != float64(4) {
		t.Errorf("last event i = %v, want 4", got)
	}
}
