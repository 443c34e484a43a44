package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/reqguard/pkg/logging"
)

// Config represents the complete reqguard configuration
type Config struct {
	Guard     GuardConfig     `yaml:"guard"`
	Browser   BrowserConfig   `yaml:"browser"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Fixture   FixtureConfig   `yaml:"fixture"`
}

// GuardConfig holds the defaults applied to guards built by the CLI.
type GuardConfig struct {
	WaitTimeout       time.Duration `yaml:"wait_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	Settle            time.Duration `yaml:"settle"`
	AbortOnDisallowed bool          `yaml:"abort_on_disallowed"`
}

// BrowserConfig selects and configures the browser driver.
type BrowserConfig struct {
	// Driver is "cdp" for Chrome or "sim" for the in-memory fixture page.
	Driver string `yaml:"driver"`
	// Classifier is "network" to classify requests from the driver's own
	// events or "script" to use the in-page request hook.
	Classifier       string        `yaml:"classifier"`
	ExecPath         string        `yaml:"exec_path"`
	Headless         bool          `yaml:"headless"`
	NoSandbox        bool          `yaml:"no_sandbox"`
	Flags            []string      `yaml:"flags"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// Settle is the strict-guard settle delay used with a real browser when
	// guard.settle is zero.
	Settle    time.Duration `yaml:"settle"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	UserAgent string        `yaml:"user_agent"`
}

// LoggingConfig configures the JSONL event log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// StorageConfig configures the run history database.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig configures tracing and event forwarding.
type TelemetryConfig struct {
	Tracing bool       `yaml:"tracing"`
	NATS    NATSConfig `yaml:"nats"`
}

// NATSConfig configures forwarding of guard events to NATS.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// FixtureConfig configures the fixture page server.
type FixtureConfig struct {
	Listen string `yaml:"listen"`
}

const (
	DriverCDP = "cdp"
	DriverSim = "sim"

	ClassifierNetwork = "network"
	ClassifierScript  = "script"
)

func defaultNATSURL() string {
	if v := strings.TrimSpace(os.Getenv("NATS_URL")); v != "" {
		return v
	}
	return "nats://127.0.0.1:4222"
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Guard: GuardConfig{
			WaitTimeout:  10 * time.Second,
			PollInterval: 50 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Driver:           DriverCDP,
			Classifier:       ClassifierNetwork,
			Headless:         true,
			OperationTimeout: 30 * time.Second,
			Settle:           200 * time.Millisecond,
			Width:            1280,
			Height:           720,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
			Dir:   filepath.Join("~", ".reqguard", "logs"),
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    filepath.Join("~", ".reqguard", "runs.db"),
		},
		Telemetry: TelemetryConfig{
			NATS: NATSConfig{
				URL:     defaultNATSURL(),
				Subject: "reqguard.events",
			},
		},
		Fixture: FixtureConfig{
			Listen: "127.0.0.1:8089",
		},
	}
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	// Load user config (~/.reqguard/config.yaml)
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".reqguard", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	// Load project config (./.reqguard/config.yaml)
	projectConfigPath := filepath.Join(".", ".reqguard", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Guard.WaitTimeout <= 0 {
		errs = append(errs, errors.New("guard.wait_timeout must be positive"))
	}
	if c.Guard.PollInterval <= 0 || c.Guard.PollInterval >= c.Guard.WaitTimeout {
		errs = append(errs, fmt.Errorf("guard.poll_interval %s must be positive and shorter than guard.wait_timeout", c.Guard.PollInterval))
	}
	if c.Guard.Settle < 0 {
		errs = append(errs, errors.New("guard.settle must be zero or positive"))
	}

	switch c.Browser.Driver {
	case DriverCDP, DriverSim:
	default:
		errs = append(errs, fmt.Errorf("browser.driver %q is invalid (valid: %s, %s)", c.Browser.Driver, DriverCDP, DriverSim))
	}
	switch c.Browser.Classifier {
	case ClassifierNetwork, ClassifierScript:
	default:
		errs = append(errs, fmt.Errorf("browser.classifier %q is invalid (valid: %s, %s)", c.Browser.Classifier, ClassifierNetwork, ClassifierScript))
	}
	if c.Browser.OperationTimeout < 0 {
		errs = append(errs, errors.New("browser.operation_timeout must be zero or positive"))
	}
	if c.Browser.Settle < 0 {
		errs = append(errs, errors.New("browser.settle must be zero or positive"))
	}
	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		errs = append(errs, errors.New("browser viewport must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Storage.Enabled && strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required when storage is enabled"))
	}
	if c.Telemetry.NATS.Enabled && strings.TrimSpace(c.Telemetry.NATS.URL) == "" {
		errs = append(errs, errors.New("telemetry.nats.url is required when NATS forwarding is enabled"))
	}
	if strings.TrimSpace(c.Fixture.Listen) == "" {
		errs = append(errs, errors.New("fixture.listen is required"))
	}

	return errors.Join(errs...)
}

// StrictSettle returns the settle delay strict guards should use with the
// configured driver.
func (c *Config) StrictSettle() time.Duration {
	if c.Guard.Settle == 0 && c.Browser.Driver == DriverCDP {
		return c.Browser.Settle
	}
	return c.Guard.Settle
}
