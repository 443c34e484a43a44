package browser

import "time"

// Viewport defines the browser viewport size.
type Viewport struct {
	Width             int     `json:"width" yaml:"width"`
	Height            int     `json:"height" yaml:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor,omitempty" yaml:"device_scale_factor"`
}

// SessionConfig configures a browser session.
type SessionConfig struct {
	SessionID        string        `json:"session_id" yaml:"session_id"`
	InitialURL       string        `json:"initial_url,omitempty" yaml:"initial_url"`
	Viewport         Viewport      `json:"viewport" yaml:"viewport"`
	UserAgent        string        `json:"user_agent,omitempty" yaml:"user_agent"`
	OperationTimeout time.Duration `json:"operation_timeout,omitempty" yaml:"operation_timeout"`
}

// DefaultSessionConfig returns the recommended session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Viewport: Viewport{
			Width:             1280,
			Height:            720,
			DeviceScaleFactor: 1.0,
		},
		OperationTimeout: 30 * time.Second,
	}
}

// Normalize fills zero fields from DefaultSessionConfig.
func (c SessionConfig) Normalize() SessionConfig {
	merged := DefaultSessionConfig()
	merged.SessionID = c.SessionID
	merged.InitialURL = c.InitialURL
	merged.UserAgent = c.UserAgent
	if c.Viewport.Width != 0 {
		merged.Viewport.Width = c.Viewport.Width
	}
	if c.Viewport.Height != 0 {
		merged.Viewport.Height = c.Viewport.Height
	}
	if c.Viewport.DeviceScaleFactor != 0 {
		merged.Viewport.DeviceScaleFactor = c.Viewport.DeviceScaleFactor
	}
	if c.OperationTimeout != 0 {
		merged.OperationTimeout = c.OperationTimeout
	}
	return merged
}
