package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/odvcencio/reqguard/pkg/browser"
)

// Runtime hands out simulated pages built by a page factory.
type Runtime struct {
	newPage func(id string) *Page

	mu    sync.Mutex
	pages map[string]*Page
}

// NewRuntime creates a runtime. A nil factory builds guard fixture pages.
func NewRuntime(newPage func(id string) *Page) *Runtime {
	if newPage == nil {
		newPage = NewGuardFixturePage
	}
	return &Runtime{newPage: newPage, pages: make(map[string]*Page)}
}

// NewSession creates a page and navigates it to the configured initial URL.
func (r *Runtime) NewSession(ctx context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	if r == nil {
		return nil, browser.ErrUnavailable
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	page := r.newPage(cfg.SessionID)
	if cfg.InitialURL != "" {
		if err := page.Navigate(ctx, cfg.InitialURL); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	r.pages[cfg.SessionID] = page
	r.mu.Unlock()
	return page, nil
}

// Page returns a page created by this runtime.
func (r *Runtime) Page(id string) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[id]
	return p, ok
}

// Close closes every page.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()
	for _, p := range pages {
		_ = p.Close()
	}
	return nil
}
