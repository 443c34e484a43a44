package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

// ScriptClassifier classifies requests with the RequestGuard page hook,
// evaluated through the driver. It works with any driver that can run
// JavaScript and keeps its window in sessionStorage, so records survive the
// navigation an HTTP request causes.
type ScriptClassifier struct {
	driver browser.Driver
	hook   script.JavaScript
}

// NewScriptClassifier returns a classifier that drives the hook through driver.
func NewScriptClassifier(driver browser.Driver) *ScriptClassifier {
	return &ScriptClassifier{
		driver: driver,
		hook:   script.MustFromResource(script.RequestGuard),
	}
}

// Arm installs the hook and opens a fresh window.
func (c *ScriptClassifier) Arm(ctx context.Context) error {
	out, err := c.run(ctx, script.GuardArm)
	if err != nil {
		return err
	}
	if out == script.GuardReplyActive {
		return request.ErrWindowActive
	}
	return nil
}

// Observe reinstalls the hook if the page changed and returns its records.
func (c *ScriptClassifier) Observe(ctx context.Context) ([]request.Observation, error) {
	out, err := c.run(ctx, script.GuardObserve)
	if err != nil {
		return nil, err
	}
	if out == script.GuardReplyClosed {
		return nil, request.ErrWindowClosed
	}
	return parseGuardRecords(out)
}

// Disarm clears the window.
func (c *ScriptClassifier) Disarm(ctx context.Context) error {
	_, err := c.run(ctx, script.GuardDisarm)
	return err
}

func (c *ScriptClassifier) run(ctx context.Context, command string) (string, error) {
	out, err := c.driver.Evaluate(ctx, c.hook.Parametrize(command))
	if err != nil {
		return "", fmt.Errorf("request guard hook %s: %w", command, err)
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

func parseGuardRecords(raw string) ([]request.Observation, error) {
	if raw == "" {
		return nil, nil
	}
	var records []script.GuardRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode request guard records: %w", err)
	}
	observations := make([]request.Observation, 0, len(records))
	for _, rec := range records {
		kind, err := request.ParseKind(rec.Kind)
		if err != nil {
			return nil, fmt.Errorf("decode request guard records: %w", err)
		}
		if kind == request.None {
			continue
		}
		observations = append(observations, request.Observation{
			Kind: kind,
			At:   time.UnixMilli(rec.At),
			URL:  rec.URL,
		})
	}
	return observations, nil
}
