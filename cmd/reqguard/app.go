package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/browser/adapters/cdp"
	"github.com/odvcencio/reqguard/pkg/browser/adapters/sim"
	"github.com/odvcencio/reqguard/pkg/config"
	"github.com/odvcencio/reqguard/pkg/guard"
	"github.com/odvcencio/reqguard/pkg/logging"
	"github.com/odvcencio/reqguard/pkg/observability"
	"github.com/odvcencio/reqguard/pkg/storage"
	"github.com/odvcencio/reqguard/pkg/telemetry"
)

// simURL is where sessions on the in-memory page start when no URL is given.
const simURL = "http://fixture.invalid/"

// app holds the dependencies one CLI invocation wires together.
type app struct {
	cfg       *config.Config
	runID     string
	logger    *logging.Logger
	hub       *telemetry.Hub
	forwarder *telemetry.NATSForwarder
	tracer    *observability.TracerProvider
	store     *storage.Store
	metrics   *browser.Metrics
	manager   *browser.Manager
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(flags.configPath) != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, usageError(err)
	}
	if flags.sim {
		cfg.Browser.Driver = config.DriverSim
	}
	if flags.logLevel != "" || flags.classifier != "" {
		if flags.logLevel != "" {
			cfg.Logging.Level = strings.ToLower(flags.logLevel)
		}
		if flags.classifier != "" {
			cfg.Browser.Classifier = strings.ToLower(flags.classifier)
		}
		if err := cfg.Validate(); err != nil {
			return nil, usageError(err)
		}
	}
	return cfg, nil
}

// newApp opens logging, telemetry and storage. The browser is started lazily
// by openSession so commands that never drive a page do not launch Chrome.
func newApp(cfg *config.Config, diag io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		runID:   ulid.Make().String(),
		hub:     telemetry.NewHub(),
		metrics: browser.NewMetrics(),
	}
	a.metrics.EnableTelemetry(a.hub)

	logger, err := logging.NewLogger(config.ResolvePath(cfg.Logging.Dir), a.runID)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger.SetMinLevel(level)
	a.logger = logger

	if cfg.Telemetry.Tracing {
		tp, err := observability.NewTracerProvider("reqguard", version, diag)
		if err != nil {
			a.close(context.Background())
			return nil, err
		}
		a.tracer = tp
	}

	if cfg.Telemetry.NATS.Enabled {
		fwd, err := telemetry.DialNATS(telemetry.NATSConfig{
			URL:     cfg.Telemetry.NATS.URL,
			Subject: cfg.Telemetry.NATS.Subject,
		})
		if err != nil {
			// Guards run without event forwarding rather than failing.
			_ = a.logger.Warn(logging.CategoryCLI, "nats.unavailable", err.Error(), map[string]any{"url": cfg.Telemetry.NATS.URL})
		} else {
			fwd.Attach(a.hub)
			a.forwarder = fwd
		}
	}

	if cfg.Storage.Enabled {
		store, err := storage.New(config.ResolvePath(cfg.Storage.Path))
		if err != nil {
			a.close(context.Background())
			return nil, fmt.Errorf("open run history: %w", err)
		}
		store.AddObserver(storage.ObserverFunc(func(ev storage.Event) {
			_ = a.logger.Debug(logging.CategoryStorage, string(ev.Type), "", map[string]any{"run_id": ev.EntityID})
		}))
		a.store = store
	}
	return a, nil
}

func (a *app) runtime() (browser.Runtime, error) {
	switch a.cfg.Browser.Driver {
	case config.DriverSim:
		return sim.NewRuntime(nil), nil
	default:
		return cdp.NewRuntime(cdp.Config{
			ExecPath:         a.cfg.Browser.ExecPath,
			Headless:         a.cfg.Browser.Headless,
			NoSandbox:        a.cfg.Browser.NoSandbox,
			OperationTimeout: a.cfg.Browser.OperationTimeout,
			Flags:            a.cfg.Browser.Flags,
		})
	}
}

// openSession starts the configured browser and opens url in a new session.
func (a *app) openSession(ctx context.Context, url string) (browser.Session, error) {
	if strings.TrimSpace(url) == "" {
		if a.cfg.Browser.Driver != config.DriverSim {
			return nil, usageError(errors.New("--url is required (or use --fixture or --sim)"))
		}
		url = simURL
	}
	if a.manager == nil {
		rt, err := a.runtime()
		if err != nil {
			return nil, err
		}
		a.manager = browser.NewManager(rt).WithMetrics(a.metrics)
	}

	sess, err := a.manager.CreateSession(ctx, browser.SessionConfig{
		SessionID:  a.runID,
		InitialURL: url,
		Viewport: browser.Viewport{
			Width:  a.cfg.Browser.Width,
			Height: a.cfg.Browser.Height,
		},
		UserAgent:        a.cfg.Browser.UserAgent,
		OperationTimeout: a.cfg.Browser.OperationTimeout,
	})
	if err != nil {
		return nil, err
	}
	_ = a.logger.Info(logging.CategoryBrowser, "browser.session_opened", url, map[string]any{
		"driver":     a.cfg.Browser.Driver,
		"classifier": a.cfg.Browser.Classifier,
	})
	return sess, nil
}

// guardFactory returns a factory over sess using the configured classifier.
func (a *app) guardFactory(sess browser.Session, extra ...guard.Option) *guard.Factory {
	opts := append(a.guardOptions(), extra...)
	if a.cfg.Browser.Classifier == config.ClassifierScript {
		opts = append([]guard.Option{guard.WithSessionID(sess.ID())}, opts...)
		return guard.NewFactory(sess, guard.NewScriptClassifier(sess), opts...)
	}
	return guard.ForSession(sess, opts...)
}

// guardOptions returns the options every guard built by the CLI shares.
func (a *app) guardOptions() []guard.Option {
	opts := []guard.Option{
		guard.WithLogger(a.logger),
		guard.WithHub(a.hub),
		guard.WithTimeout(a.cfg.Guard.WaitTimeout),
		guard.WithInterval(a.cfg.Guard.PollInterval),
		guard.WithSettle(a.cfg.StrictSettle()),
		guard.WithAbortOnDisallowed(a.cfg.Guard.AbortOnDisallowed),
	}
	if a.store != nil {
		opts = append(opts, guard.WithReporter(a.store))
	}
	return opts
}

func (a *app) close(ctx context.Context) {
	if a.manager != nil {
		_ = a.manager.Close()
	}
	if a.forwarder != nil {
		_ = a.forwarder.Close()
	}
	a.hub.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		_ = a.tracer.Shutdown(shutdownCtx)
		cancel()
	}
	_ = a.logger.Close()
}
