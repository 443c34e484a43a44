// Package cdp drives Chrome over the DevTools protocol with chromedp and
// classifies requests from the protocol's network events.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/odvcencio/reqguard/pkg/browser"
)

// Runtime is a Chrome-backed browser runtime. Each session is a tab of one
// shared browser process.
type Runtime struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRuntime launches Chrome.
func NewRuntime(cfg Config) (*Runtime, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(merged)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser and ties its lifetime to browserCtx,
	// so the start timeout cancels it rather than deriving a deadline.
	watchdog := time.AfterFunc(merged.StartTimeout, browserCancel)
	err := chromedp.Run(browserCtx)
	watchdog.Stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start chrome: %v", browser.ErrUnavailable, err)
	}

	return &Runtime{
		cfg:           merged,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sessions:      make(map[string]*Session),
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	for _, flag := range cfg.Flags {
		name, value, hasValue := strings.Cut(flag, "=")
		name = strings.TrimLeft(strings.TrimSpace(name), "-")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// NewSession opens a tab, enables network events, and navigates to the
// configured initial URL.
func (r *Runtime) NewSession(ctx context.Context, sessionCfg browser.SessionConfig) (browser.Session, error) {
	if r == nil {
		return nil, browser.ErrUnavailable
	}
	if strings.TrimSpace(sessionCfg.SessionID) == "" {
		return nil, errors.New("session_id is required")
	}
	cfg := sessionCfg.Normalize()
	if sessionCfg.OperationTimeout == 0 {
		cfg.OperationTimeout = r.cfg.OperationTimeout
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	classifier := NewNetworkClassifier()
	chromedp.ListenTarget(tabCtx, classifier.HandleEvent)

	setup := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(cfg.Viewport.Width), int64(cfg.Viewport.Height), chromedp.EmulateScale(cfg.Viewport.DeviceScaleFactor)),
	}
	if cfg.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(cfg.UserAgent))
	}

	// Same first-Run rule as the browser: the tab lives as long as tabCtx.
	watchdog := time.AfterFunc(cfg.OperationTimeout, tabCancel)
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, setup...)
	watchdog.Stop()
	stop()
	if err != nil {
		tabCancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}

	sess := &Session{
		id:         cfg.SessionID,
		cfg:        cfg,
		tabCtx:     tabCtx,
		tabCancel:  tabCancel,
		classifier: classifier,
		onClose:    r.forget,
	}
	if cfg.InitialURL != "" {
		if err := sess.Navigate(ctx, cfg.InitialURL); err != nil {
			_ = sess.Close()
			return nil, err
		}
	}

	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()
	return sess, nil
}

func (r *Runtime) forget(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Close closes every tab and stops Chrome.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.Close()
	}

	var err error
	if r.browserCtx != nil {
		err = chromedp.Cancel(r.browserCtx)
	}
	r.browserCancel()
	r.allocCancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
