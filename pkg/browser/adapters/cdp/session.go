package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

// Session is one Chrome tab.
type Session struct {
	id         string
	cfg        browser.SessionConfig
	tabCtx     context.Context
	tabCancel  context.CancelFunc
	classifier *NetworkClassifier
	onClose    func(id string)
	closed     atomic.Bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Classifier returns the network-event classifier of the tab.
func (s *Session) Classifier() request.Classifier {
	return s.classifier
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return browser.NewActionError("navigate", locator.Locator{}, err)
	}
	return nil
}

// Click dispatches a mouse click on the first element matching loc. It
// returns once the mouse is released; requests the click starts are not awaited.
func (s *Session) Click(ctx context.Context, loc locator.Locator) error {
	selector, isXPath := loc.Selector()
	by := chromedp.ByQuery
	if isXPath {
		by = chromedp.BySearch
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return browser.NewActionError("click", loc, err)
	}
	if len(nodes) == 0 {
		return browser.NewActionError("click", loc, browser.ErrElementNotFound)
	}
	if err := s.run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return browser.NewActionError("click", loc, err)
	}
	return nil
}

// Evaluate runs js in the page and returns its result. Strings are returned
// as-is, other values as JSON, undefined as "".
func (s *Session) Evaluate(ctx context.Context, js script.JavaScript) (string, error) {
	var result *cdpruntime.RemoteObject
	if err := s.run(ctx, chromedp.Evaluate(js.Source, &result)); err != nil {
		return "", browser.NewActionError("evaluate", locator.Locator{}, err)
	}
	if result == nil || result.Type == cdpruntime.TypeUndefined {
		return "", nil
	}
	return decodeResult(result.Value)
}

func decodeResult(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// Close closes the tab.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	if s.onClose != nil {
		s.onClose(s.id)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// run executes actions on the tab, bounded by the caller's context and the
// session operation timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return browser.ErrSessionClosed
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.OperationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return browser.ErrOperationTimeout
	}
	return err
}
