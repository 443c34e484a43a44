package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverridesForTest exposes env override logic for tests without file I/O.
func ApplyEnvOverridesForTest(cfg *Config) {
	applyEnvOverrides(cfg, nil)
}

// applyEnvOverrides applies REQGUARD_* environment variables, falling back to
// ~/.reqguard/config.env for keys the process environment leaves unset.
func applyEnvOverrides(cfg *Config, configEnv map[string]string) {
	getenv := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(configEnv[key])
	}
	boolEnv := func(key string) (bool, bool) {
		if val, ok := envBool(key); ok {
			return val, true
		}
		return parseBool(configEnv[key])
	}

	if d, ok := envDuration(getenv("REQGUARD_WAIT_TIMEOUT")); ok {
		cfg.Guard.WaitTimeout = d
	}
	if d, ok := envDuration(getenv("REQGUARD_POLL_INTERVAL")); ok {
		cfg.Guard.PollInterval = d
	}
	if d, ok := envDuration(getenv("REQGUARD_SETTLE")); ok {
		cfg.Guard.Settle = d
	}
	if val, ok := boolEnv("REQGUARD_ABORT_ON_DISALLOWED"); ok {
		cfg.Guard.AbortOnDisallowed = val
	}

	if v := getenv("REQGUARD_BROWSER_DRIVER"); v != "" {
		cfg.Browser.Driver = strings.ToLower(v)
	}
	if v := getenv("REQGUARD_CLASSIFIER"); v != "" {
		cfg.Browser.Classifier = strings.ToLower(v)
	}
	if v := getenv("REQGUARD_CHROME_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
	if val, ok := boolEnv("REQGUARD_HEADLESS"); ok {
		cfg.Browser.Headless = val
	}
	if val, ok := boolEnv("REQGUARD_NO_SANDBOX"); ok {
		cfg.Browser.NoSandbox = val
	}
	if v := getenv("REQGUARD_CHROME_FLAGS"); v != "" {
		cfg.Browser.Flags = splitCommaList(v)
	}
	if d, ok := envDuration(getenv("REQGUARD_OPERATION_TIMEOUT")); ok {
		cfg.Browser.OperationTimeout = d
	}

	if v := getenv("REQGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("REQGUARD_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}

	if v := getenv("REQGUARD_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if val, ok := boolEnv("REQGUARD_STORAGE_ENABLED"); ok {
		cfg.Storage.Enabled = val
	}

	if val, ok := boolEnv("REQGUARD_TRACING"); ok {
		cfg.Telemetry.Tracing = val
	}
	if v := getenv("REQGUARD_NATS_URL"); v != "" {
		cfg.Telemetry.NATS.URL = v
		cfg.Telemetry.NATS.Enabled = true
	}
	if v := getenv("REQGUARD_NATS_SUBJECT"); v != "" {
		cfg.Telemetry.NATS.Subject = v
	}

	if v := getenv("REQGUARD_FIXTURE_LISTEN"); v != "" {
		cfg.Fixture.Listen = v
	}
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envBool(key string) (bool, bool) {
	return parseBool(os.Getenv(key))
}

func parseBool(val string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// envDuration accepts Go durations ("250ms") or plain milliseconds ("250").
func envDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func loadConfigEnvVars() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}

	path := filepath.Join(home, ".reqguard", "config.env")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	vars := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		vars[key] = value
	}
	return vars
}
