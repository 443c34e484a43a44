//go:build integration
// +build integration

package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/odvcencio/reqguard/pkg/browser"
	"github.com/odvcencio/reqguard/pkg/browser/adapters/cdp"
	"github.com/odvcencio/reqguard/pkg/fixture"
	"github.com/odvcencio/reqguard/pkg/guard"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

func findChrome(t *testing.T) string {
	t.Helper()
	if path := os.Getenv("REQGUARD_CHROME_PATH"); path != "" {
		return path
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// openFixture starts Chrome and a fixture server and returns a session on the
// fixture page.
func openFixture(t *testing.T) browser.Session {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	chrome := findChrome(t)
	if chrome == "" {
		t.Skip("chrome not found; skipping browser runtime test")
	}

	srv := httptest.NewServer(fixture.NewServer(nil).Handler())
	t.Cleanup(srv.Close)

	runtime, err := cdp.NewRuntime(cdp.Config{
		ExecPath:  chrome,
		Headless:  true,
		NoSandbox: os.Getenv("CI") != "",
	})
	if err != nil {
		t.Fatalf("failed to start chrome: %v", err)
	}
	mgr := browser.NewManager(runtime)
	t.Cleanup(func() { _ = mgr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := mgr.CreateSession(ctx, browser.SessionConfig{InitialURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

// factoryFunc builds the guard factory a matrix runs with.
type factoryFunc func(sess browser.Session, opts ...guard.Option) *guard.Factory

func scriptFactory(sess browser.Session, opts ...guard.Option) *guard.Factory {
	opts = append([]guard.Option{guard.WithSessionID(sess.ID())}, opts...)
	return guard.NewFactory(sess, guard.NewScriptClassifier(sess), opts...)
}

func TestStrictGuardsAgainstChrome(t *testing.T) {
	strictMatrix(t, openFixture(t), guard.ForSession)
}

func TestWaitGuardsAgainstChrome(t *testing.T) {
	waitMatrix(t, openFixture(t), guard.ForSession)
}

func TestScriptClassifierStrictGuardsAgainstChrome(t *testing.T) {
	strictMatrix(t, openFixture(t), scriptFactory)
}

func TestScriptClassifierWaitGuardsAgainstChrome(t *testing.T) {
	waitMatrix(t, openFixture(t), scriptFactory)
}

func strictMatrix(t *testing.T, sess browser.Session, newFactory factoryFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	links := map[request.Kind]locator.Locator{
		request.None: locator.ID("noRequest"),
		request.HTTP: locator.ID("http"),
		request.XHR:  locator.ID("ajax"),
	}
	kinds := []request.Kind{request.None, request.HTTP, request.XHR}
	for _, expected := range kinds {
		for _, produced := range kinds {
			g, err := newFactory(sess, guard.WithSettle(500*time.Millisecond)).Strict(expected)
			if err != nil {
				t.Fatalf("Strict(%s): %v", expected, err)
			}
			err = g.Click(ctx, links[produced])
			if expected == produced && err != nil {
				t.Errorf("guard %s clicking %s: %v", expected, produced, err)
			}
			if expected != produced {
				failure, ok := guard.AsFailure(err)
				if !ok {
					t.Errorf("guard %s clicking %s: want failure, got %v", expected, produced, err)
					continue
				}
				if failure.Observed != produced {
					t.Errorf("guard %s clicking %s: observed %s", expected, produced, failure.Observed)
				}
			}
		}
	}
}

func waitMatrix(t *testing.T, sess browser.Session, newFactory factoryFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	twoClicks := func(first, second string) script.JavaScript {
		return script.MustFromResource(script.TwoClicksWithTimeout).
			Parametrize(locator.ID(first), locator.ID(second), time.Second)
	}
	factory := newFactory(sess, guard.WithTimeout(5*time.Second))

	start := time.Now()
	if _, err := factory.WaitXHR().Evaluate(ctx, twoClicks("http", "ajax")); err != nil {
		t.Fatalf("WaitXHR(http, ajax): %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("WaitXHR passed after %s, before the delayed click", elapsed)
	}

	if _, err := factory.WaitHTTP().Evaluate(ctx, twoClicks("noRequest", "http")); err != nil {
		t.Fatalf("WaitHTTP(noRequest, http): %v", err)
	}

	_, err := factory.WaitHTTP().Evaluate(ctx, twoClicks("ajax", "ajax"))
	failure, ok := guard.AsFailure(err)
	if !ok {
		t.Fatalf("WaitHTTP(ajax, ajax): want failure, got %v", err)
	}
	if failure.Observed != request.XHR {
		t.Errorf("WaitHTTP(ajax, ajax) observed %s, want XHR", failure.Observed)
	}
}
