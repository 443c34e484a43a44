package cdp

import (
	"errors"
	"strings"
	"time"
)

// Config controls how the CDP adapter launches Chrome.
type Config struct {
	// ExecPath is the Chrome binary. Empty lets chromedp search the usual locations.
	ExecPath         string
	Headless         bool
	NoSandbox        bool
	UserDataDir      string
	StartTimeout     time.Duration
	OperationTimeout time.Duration
	// Flags are extra command line switches, "name" or "name=value".
	Flags []string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:         true,
		StartTimeout:     30 * time.Second,
		OperationTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	defaults.Headless = c.Headless
	defaults.NoSandbox = c.NoSandbox
	defaults.Flags = c.Flags
	if strings.TrimSpace(c.ExecPath) != "" {
		defaults.ExecPath = c.ExecPath
	}
	if strings.TrimSpace(c.UserDataDir) != "" {
		defaults.UserDataDir = c.UserDataDir
	}
	if c.StartTimeout != 0 {
		defaults.StartTimeout = c.StartTimeout
	}
	if c.OperationTimeout != 0 {
		defaults.OperationTimeout = c.OperationTimeout
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.StartTimeout < 0 {
		return errors.New("start_timeout must be zero or positive")
	}
	if c.OperationTimeout < 0 {
		return errors.New("operation_timeout must be zero or positive")
	}
	for _, flag := range c.Flags {
		if strings.TrimSpace(strings.SplitN(flag, "=", 2)[0]) == "" {
			return errors.New("flags must be of the form name or name=value")
		}
	}
	return nil
}
