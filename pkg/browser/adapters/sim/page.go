// Package sim is an in-memory browser page. Elements are declared with the
// request kind a click on them produces, which makes guard behaviour testable
// without a real browser.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

// ScriptHandler evaluates a named script against the page.
type ScriptHandler func(ctx context.Context, p *Page, args []string) (string, error)

// Element is a clickable element on the page.
type Element struct {
	Kind request.Kind
	URL  string
	// Delay postpones the request after the click returns, as an async handler would.
	Delay time.Duration
	// Err is returned from Click instead of performing the request.
	Err error
}

// Page is a simulated browser session.
type Page struct {
	id  string
	url string

	mu       sync.Mutex
	elements map[string]Element
	scripts  map[string]ScriptHandler
	closed   bool
	timers   []*time.Timer
	clicks   []string

	recorder *request.Recorder
}

// NewPage creates an empty page.
func NewPage(id string) *Page {
	p := &Page{
		id:       id,
		elements: make(map[string]Element),
		scripts:  make(map[string]ScriptHandler),
		recorder: request.NewRecorder(nil),
	}
	p.HandleScript(script.TwoClicksWithTimeout, twoClicksWithTimeout)
	p.HandleScript(script.RequestGuard, requestGuard)
	return p
}

// NewGuardFixturePage returns a page with the three links of the request guard
// fixture: noRequest, ajax, and http.
func NewGuardFixturePage(id string) *Page {
	p := NewPage(id)
	p.SetElement(locator.ID("noRequest"), Element{Kind: request.None})
	p.SetElement(locator.ID("ajax"), Element{Kind: request.XHR, URL: "/ajax"})
	p.SetElement(locator.ID("http"), Element{Kind: request.HTTP, URL: "/?reload=1"})
	return p
}

// SetElement declares or replaces the element addressed by loc.
func (p *Page) SetElement(loc locator.Locator, el Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.String()] = el
}

// HandleScript registers a handler for scripts with the given name.
func (p *Page) HandleScript(name string, handler ScriptHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[name] = handler
}

// ID returns the session identifier.
func (p *Page) ID() string {
	return p.id
}

// URL returns the last navigated URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Clicks returns the locators clicked so far, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Navigate records the URL. Navigation is the caller's setup step and is not
// attributed to any guard window.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

// Click performs the element's request, synchronously unless the element has a Delay.
func (p *Page) Click(ctx context.Context, loc locator.Locator) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	el, ok := p.elements[loc.String()]
	if ok && el.Err == nil {
		p.clicks = append(p.clicks, loc.String())
	}
	p.mu.Unlock()
	if !ok {
		return browser.NewActionError("click", loc, browser.ErrElementNotFound)
	}
	if el.Err != nil {
		return browser.NewActionError("click", loc, el.Err)
	}
	if el.Delay > 0 {
		p.after(el.Delay, func() { p.fire(el) })
		return nil
	}
	p.fire(el)
	return nil
}

// Evaluate dispatches to the handler registered for the script's name.
func (p *Page) Evaluate(ctx context.Context, js script.JavaScript) (string, error) {
	if err := p.ensureOpen(); err != nil {
		return "", err
	}
	p.mu.Lock()
	handler, ok := p.scripts[js.Name]
	p.mu.Unlock()
	if !ok {
		return "", browser.NewActionError("evaluate", locator.Locator{}, fmt.Errorf("%w: no handler for script %q", browser.ErrUnsupported, js.Name))
	}
	return handler(ctx, p, js.Args)
}

// Classifier returns the page's request recorder.
func (p *Page) Classifier() request.Classifier {
	return p.recorder
}

// Trigger records a request of kind as if the page had issued it.
func (p *Page) Trigger(kind request.Kind, url string) {
	p.recorder.Record(kind, url)
}

// Close stops pending timers.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	return nil
}

func (p *Page) fire(el Element) {
	if el.Kind == request.HTTP && el.URL != "" {
		p.mu.Lock()
		p.url = el.URL
		p.mu.Unlock()
	}
	p.recorder.Record(el.Kind, el.URL)
}

// after runs fn once delay has passed, unless the page is closed first.
func (p *Page) after(delay time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.timers = append(p.timers, time.AfterFunc(delay, fn))
}

func (p *Page) ensureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

// twoClicksWithTimeout clicks args[0] now and args[1] after args[2] milliseconds,
// returning before the second click like the browser-side timer does.
func twoClicksWithTimeout(ctx context.Context, p *Page, args []string) (string, error) {
	if len(args) < 2 {
		return "", browser.NewActionError("evaluate", locator.Locator{}, fmt.Errorf("%s needs two locators, got %d args", script.TwoClicksWithTimeout, len(args)))
	}
	first, err := locator.Parse(args[0])
	if err != nil {
		return "", browser.NewActionError("evaluate", locator.Locator{}, err)
	}
	second, err := locator.Parse(args[1])
	if err != nil {
		return "", browser.NewActionError("evaluate", locator.Locator{}, err)
	}
	delay := 5 * time.Second
	if len(args) > 2 {
		ms, err := strconv.Atoi(args[2])
		if err != nil {
			return "", browser.NewActionError("evaluate", locator.Locator{}, fmt.Errorf("delay %q: %w", args[2], err))
		}
		delay = time.Duration(ms) * time.Millisecond
	}

	if err := p.Click(ctx, first); err != nil {
		return "", err
	}
	p.after(delay, func() {
		_ = p.Click(context.Background(), second)
	})
	return "scheduled", nil
}

// requestGuard answers the RequestGuard hook commands from the page recorder,
// so script-driven classifiers see the same window as Classifier().
func requestGuard(ctx context.Context, p *Page, args []string) (string, error) {
	command := script.GuardObserve
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case script.GuardArm:
		if err := p.recorder.Arm(ctx); errors.Is(err, request.ErrWindowActive) {
			return script.GuardReplyActive, nil
		}
		return "[]", nil
	case script.GuardDisarm:
		_ = p.recorder.Disarm(ctx)
		return "[]", nil
	default:
		observations, err := p.recorder.Observe(ctx)
		if errors.Is(err, request.ErrWindowClosed) {
			return script.GuardReplyClosed, nil
		}
		records := make([]script.GuardRecord, 0, len(observations))
		for _, obs := range observations {
			records = append(records, script.GuardRecord{Kind: obs.Kind.String(), At: obs.At.UnixMilli(), URL: obs.URL})
		}
		data, err := json.Marshal(records)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
