package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero strings and durations leave the
// base value alone; booleans are applied only when the file sets them.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Guard.WaitTimeout != 0 {
		base.Guard.WaitTimeout = override.Guard.WaitTimeout
	}
	if override.Guard.PollInterval != 0 {
		base.Guard.PollInterval = override.Guard.PollInterval
	}
	if boolFieldSet(raw, "guard", "settle") {
		base.Guard.Settle = override.Guard.Settle
	}
	if boolFieldSet(raw, "guard", "abort_on_disallowed") {
		base.Guard.AbortOnDisallowed = override.Guard.AbortOnDisallowed
	}

	if override.Browser.Driver != "" {
		base.Browser.Driver = override.Browser.Driver
	}
	if override.Browser.Classifier != "" {
		base.Browser.Classifier = override.Browser.Classifier
	}
	if override.Browser.ExecPath != "" {
		base.Browser.ExecPath = override.Browser.ExecPath
	}
	if boolFieldSet(raw, "browser", "headless") {
		base.Browser.Headless = override.Browser.Headless
	}
	if boolFieldSet(raw, "browser", "no_sandbox") {
		base.Browser.NoSandbox = override.Browser.NoSandbox
	}
	if len(override.Browser.Flags) > 0 {
		base.Browser.Flags = override.Browser.Flags
	}
	if override.Browser.OperationTimeout != 0 {
		base.Browser.OperationTimeout = override.Browser.OperationTimeout
	}
	if boolFieldSet(raw, "browser", "settle") {
		base.Browser.Settle = override.Browser.Settle
	}
	if override.Browser.Width != 0 {
		base.Browser.Width = override.Browser.Width
	}
	if override.Browser.Height != 0 {
		base.Browser.Height = override.Browser.Height
	}
	if override.Browser.UserAgent != "" {
		base.Browser.UserAgent = override.Browser.UserAgent
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}

	if boolFieldSet(raw, "storage", "enabled") {
		base.Storage.Enabled = override.Storage.Enabled
	}
	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}

	if boolFieldSet(raw, "telemetry", "tracing") {
		base.Telemetry.Tracing = override.Telemetry.Tracing
	}
	if boolFieldSet(raw, "telemetry", "nats", "enabled") {
		base.Telemetry.NATS.Enabled = override.Telemetry.NATS.Enabled
	}
	if override.Telemetry.NATS.URL != "" {
		base.Telemetry.NATS.URL = override.Telemetry.NATS.URL
	}
	if override.Telemetry.NATS.Subject != "" {
		base.Telemetry.NATS.Subject = override.Telemetry.NATS.Subject
	}

	if override.Fixture.Listen != "" {
		base.Fixture.Listen = override.Fixture.Listen
	}
}

// boolFieldSet reports whether the YAML document sets the key at path.
func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
