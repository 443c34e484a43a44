package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/logging"
	"github.com/odvcencio/reqguard/pkg/observability"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
	"github.com/odvcencio/reqguard/pkg/telemetry"
)

// Guard performs browser actions inside a classifier window and checks the
// observed request kind against its Spec. A Guard holds no per-action state
// and may be reused, but only one window may be armed per classifier at a time.
type Guard struct {
	spec       Spec
	driver     browser.Driver
	classifier request.Classifier
	opts       options
}

// New validates spec and returns a guard over driver and classifier.
// Construction does not touch the browser.
func New(driver browser.Driver, classifier request.Classifier, spec Spec, opts ...Option) (*Guard, error) {
	if driver == nil {
		return nil, errors.New("guard: driver is required")
	}
	if classifier == nil {
		return nil, errors.New("guard: classifier is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Guard{spec: spec, driver: driver, classifier: classifier, opts: o}, nil
}

// Spec returns the guard's configuration.
func (g *Guard) Spec() Spec {
	return g.spec
}

// Click clicks the element at loc and checks the request it triggered.
// Driver errors are returned unchanged; a kind mismatch returns *Failure.
func (g *Guard) Click(ctx context.Context, loc locator.Locator) error {
	return g.perform(ctx, "click", loc.String(), func(ctx context.Context) error {
		return g.driver.Click(ctx, loc)
	})
}

// Evaluate runs js and checks the requests it triggered, returning the
// script's result alongside the guard outcome.
func (g *Guard) Evaluate(ctx context.Context, js script.JavaScript) (string, error) {
	var out string
	err := g.perform(ctx, "evaluate", js.Name, func(ctx context.Context) error {
		var err error
		out, err = g.driver.Evaluate(ctx, js)
		return err
	})
	return out, err
}

func (g *Guard) perform(ctx context.Context, op, target string, action func(context.Context) error) (err error) {
	run := Run{
		ID:        ulid.Make().String(),
		SessionID: g.opts.sessionID,
		Mode:      g.spec.Mode,
		Expected:  g.spec.Accepted,
		Op:        op,
		Target:    target,
		StartedAt: time.Now(),
	}
	ctx, span := observability.StartSpan(ctx, "guard.perform", trace.WithAttributes(
		observability.AttrRunID.String(run.ID),
		observability.AttrSessionID.String(run.SessionID),
		observability.AttrMode.String(run.Mode.String()),
		observability.AttrExpected.String(run.Expected.String()),
		observability.AttrOp.String(op),
		observability.AttrTarget.String(target),
	))
	defer span.End()

	if err := g.classifier.Arm(ctx); err != nil {
		return fmt.Errorf("arm request classifier: %w", err)
	}
	defer func() {
		if derr := g.classifier.Disarm(context.WithoutCancel(ctx)); derr != nil && err == nil {
			err = fmt.Errorf("disarm request classifier: %w", derr)
		}
	}()
	g.publish(telemetry.EventGuardArmed, run, nil)

	var actionErr error
	tracked := func(ctx context.Context) error {
		actionErr = action(ctx)
		return actionErr
	}

	var v verdict
	if g.spec.Mode == Wait {
		v, err = g.runWait(ctx, tracked)
	} else {
		v, err = g.runStrict(ctx, tracked)
	}
	run.Elapsed = time.Since(run.StartedAt)

	if err != nil {
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "guarded action failed")
		if actionErr != nil && errors.Is(err, actionErr) {
			observability.RecordGuardActionError(op)
		}
		_ = g.opts.logger.Log(logging.Event{
			Level:     logging.LevelError,
			Category:  logging.CategoryGuard,
			EventType: "guard.action_error",
			SessionID: run.SessionID,
			RunID:     run.ID,
			Message:   err.Error(),
			Details:   map[string]any{"op": op, "target": target, "mode": run.Mode.String()},
		})
		g.report(ctx, run)
		return err
	}

	run.Observed = v.observed.Kind
	run.Passed = v.passed
	span.SetAttributes(
		observability.AttrObserved.String(run.Observed.String()),
		observability.AttrPassed.Bool(run.Passed),
	)
	observability.RecordGuardOutcome(run.Mode.String(), run.Expected.String(), run.Observed.String(), run.Passed, run.Elapsed)
	g.report(ctx, run)

	details := map[string]any{
		"op":         op,
		"target":     target,
		"mode":       run.Mode.String(),
		"expected":   run.Expected.String(),
		"observed":   run.Observed.String(),
		"elapsed_ms": run.Elapsed.Milliseconds(),
	}
	if v.observed.URL != "" {
		details["url"] = v.observed.URL
	}
	if v.passed {
		g.publish(telemetry.EventGuardPassed, run, details)
		_ = g.opts.logger.Log(logging.Event{
			Level: logging.LevelInfo, Category: logging.CategoryGuard, EventType: "guard.passed",
			SessionID: run.SessionID, RunID: run.ID, Details: details,
		})
		return nil
	}

	failure := &Failure{
		Expected: run.Expected,
		Observed: run.Observed,
		Mode:     run.Mode,
		Elapsed:  run.Elapsed,
		URL:      v.observed.URL,
	}
	span.SetStatus(codes.Error, failure.Error())
	g.publish(telemetry.EventGuardFailed, run, details)
	_ = g.opts.logger.Log(logging.Event{
		Level: logging.LevelWarn, Category: logging.CategoryGuard, EventType: "guard.failed",
		SessionID: run.SessionID, RunID: run.ID, Details: details, Message: failure.Error(),
	})
	return failure
}

// runStrict closes the window once the action returns.
func (g *Guard) runStrict(ctx context.Context, action func(context.Context) error) (verdict, error) {
	if err := action(ctx); err != nil {
		return verdict{}, err
	}
	if g.spec.Settle > 0 {
		timer := time.NewTimer(g.spec.Settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return verdict{}, ctx.Err()
		case <-timer.C:
		}
	}
	observations, err := g.classifier.Observe(ctx)
	if err != nil {
		return verdict{}, fmt.Errorf("observe requests: %w", err)
	}
	v, _ := g.spec.decide(observations, true)
	return v, nil
}

// runWait starts the action and polls the classifier until decide reaches a
// verdict or the timeout closes the window. The action keeps running while
// polling; it is cancelled once a verdict exists.
func (g *Guard) runWait(ctx context.Context, action func(context.Context) error) (verdict, error) {
	window, closeWindow := context.WithTimeout(ctx, g.spec.Timeout)
	defer closeWindow()

	var decided atomic.Pointer[verdict]
	grp, gctx := errgroup.WithContext(window)

	grp.Go(func() error {
		err := action(gctx)
		if err != nil && window.Err() != nil && ctx.Err() == nil {
			// Cancelled by the verdict or the timeout, not a driver failure.
			return nil
		}
		return err
	})

	grp.Go(func() error {
		ticker := time.NewTicker(g.spec.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				if err := ctx.Err(); err != nil {
					return err
				}
				if window.Err() == nil {
					// The action failed; its error wins.
					return nil
				}
				observations, err := g.classifier.Observe(context.WithoutCancel(ctx))
				if err != nil {
					return fmt.Errorf("observe requests: %w", err)
				}
				v, _ := g.spec.decide(observations, true)
				decided.Store(&v)
				return nil
			case <-ticker.C:
				observations, err := g.classifier.Observe(gctx)
				if err != nil {
					if gctx.Err() != nil {
						continue
					}
					return fmt.Errorf("observe requests: %w", err)
				}
				if v, ok := g.spec.decide(observations, false); ok {
					decided.Store(&v)
					closeWindow()
					return nil
				}
			}
		}
	})

	err := grp.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return verdict{}, ctxErr
	}
	if err != nil {
		return verdict{}, err
	}
	v := decided.Load()
	if v == nil {
		return verdict{}, errors.New("guard: wait window ended without a verdict")
	}
	return *v, nil
}

func (g *Guard) publish(eventType telemetry.EventType, run Run, data map[string]any) {
	if g.opts.hub == nil {
		return
	}
	g.opts.hub.Publish(telemetry.Event{
		Type:      eventType,
		SessionID: run.SessionID,
		RunID:     run.ID,
		Data:      data,
	})
}

func (g *Guard) report(ctx context.Context, run Run) {
	if g.opts.reporter == nil {
		return
	}
	if err := g.opts.reporter.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		_ = g.opts.logger.Warn(logging.CategoryStorage, "guard.report_failed", err.Error(), map[string]any{"run_id": run.ID})
	}
}
