package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/reqguard/pkg/fixture"
	"github.com/odvcencio/reqguard/pkg/guard"
	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

// targetFlags select the page a guard runs against.
type targetFlags struct {
	url         string
	withFixture bool
	timeout     time.Duration
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.url, "url", "", "Page to open before the action")
	cmd.Flags().BoolVar(&t.withFixture, "fixture", false, "Serve the fixture page on an ephemeral port and open it")
	cmd.Flags().DurationVar(&t.timeout, "timeout", 0, "Override guard.wait_timeout")
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var (
		target targetFlags
		click  string
		expect string
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Click an element and require exactly one kind of request",
		Long: "Runs a strict guard: the first request observed after the click must be\n" +
			"the expected kind. NONE passes only when no request is observed at all.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "click", "expect"); err != nil {
				return err
			}
			loc, err := locator.Parse(click)
			if err != nil {
				return usageError(fmt.Errorf("--click: %w", err))
			}
			kind, err := request.ParseKind(expect)
			if err != nil {
				return usageError(fmt.Errorf("--expect: %w", err))
			}
			var extra []guard.Option
			if cmd.Flags().Changed("settle") {
				extra = append(extra, guard.WithSettle(settle))
			}
			return runGuarded(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags, &target, extra,
				func(f *guard.Factory) (*guard.Guard, error) { return f.Strict(kind) },
				func(ctx context.Context, g *guard.Guard) error { return g.Click(ctx, loc) },
			)
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&click, "click", "", "Element to click (id=, name=, css=, xpath=), required")
	cmd.Flags().StringVar(&expect, "expect", "", "Expected request kind (none|http|xhr), required")
	cmd.Flags().DurationVar(&settle, "settle", 0, "Override the delay before the strict guard observes")
	return cmd
}

func newWaitCmd(flags *globalFlags) *cobra.Command {
	var (
		target     targetFlags
		click      string
		scriptName string
		scriptArgs []string
		expect     []string
		abort      bool
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Run an action and wait for an accepted kind of request",
		Long: "Runs a wait guard: the action returns immediately and the guard polls until\n" +
			"an accepted request kind is observed or the timeout expires.\n\n" +
			"Script arguments that parse as durations are passed in milliseconds;\n" +
			"everything else is passed as a string.",
		Example: "  reqguard wait --fixture --expect xhr --script two-clicks-with-timeout --arg id=http --arg id=ajax --arg 5s",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "expect"); err != nil {
				return err
			}
			if (click == "") == (scriptName == "") {
				return usageError(errors.New("exactly one of --click or --script is required"))
			}
			kinds := make([]request.Kind, 0, len(expect))
			for _, raw := range expect {
				kind, err := request.ParseKind(raw)
				if err != nil {
					return usageError(fmt.Errorf("--expect: %w", err))
				}
				kinds = append(kinds, kind)
			}

			var action func(context.Context, *guard.Guard) error
			if click != "" {
				loc, err := locator.Parse(click)
				if err != nil {
					return usageError(fmt.Errorf("--click: %w", err))
				}
				action = func(ctx context.Context, g *guard.Guard) error { return g.Click(ctx, loc) }
			} else {
				js, err := script.FromResource(scriptName)
				if err != nil {
					return usageError(err)
				}
				js = js.Parametrize(scriptArgValues(scriptArgs)...)
				action = func(ctx context.Context, g *guard.Guard) error {
					_, err := g.Evaluate(ctx, js)
					return err
				}
			}

			var extra []guard.Option
			if cmd.Flags().Changed("abort-on-disallowed") {
				extra = append(extra, guard.WithAbortOnDisallowed(abort))
			}
			return runGuarded(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags, &target, extra,
				func(f *guard.Factory) (*guard.Guard, error) { return f.Wait(kinds...) },
				action,
			)
		},
	}
	target.register(cmd)
	cmd.Flags().StringSliceVar(&expect, "expect", nil, "Accepted request kinds, comma separated (none|http|xhr), required")
	cmd.Flags().StringVar(&click, "click", "", "Element to click (id=, name=, css=, xpath=)")
	cmd.Flags().StringVar(&scriptName, "script", "", "Embedded script to evaluate ("+strings.Join(script.Resources(), ", ")+")")
	cmd.Flags().StringArrayVar(&scriptArgs, "arg", nil, "Script argument, repeatable")
	cmd.Flags().BoolVar(&abort, "abort-on-disallowed", false, "Fail as soon as a request of a kind not accepted is observed")
	return cmd
}

// requireFlags reports missing flags as a usage error.
func requireFlags(cmd *cobra.Command, names ...string) error {
	var missing []string
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return usageError(fmt.Errorf("required flag(s) %s not set", strings.Join(missing, ", ")))
}

func scriptArgValues(raw []string) []any {
	values := make([]any, 0, len(raw))
	for _, arg := range raw {
		if d, err := time.ParseDuration(arg); err == nil {
			values = append(values, d)
			continue
		}
		values = append(values, arg)
	}
	return values
}

// runGuarded wires an app, opens the target page, builds a guard and runs the
// action under it. The verdict goes to out; trace spans go to diag.
func runGuarded(
	ctx context.Context,
	out, diag io.Writer,
	flags *globalFlags,
	target *targetFlags,
	extra []guard.Option,
	build func(*guard.Factory) (*guard.Guard, error),
	action func(context.Context, *guard.Guard) error,
) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if target.timeout != 0 {
		cfg.Guard.WaitTimeout = target.timeout
		if err := cfg.Validate(); err != nil {
			return usageError(err)
		}
	}

	a, err := newApp(cfg, diag)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	url := target.url
	if target.withFixture {
		srv := fixture.NewServer(a.logger)
		if err := srv.Listen("127.0.0.1:0"); err != nil {
			return err
		}
		fixtureCtx, stopFixture := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() { served <- srv.Serve(fixtureCtx) }()
		defer func() {
			stopFixture()
			<-served
		}()
		url = srv.URL() + "/"
	}

	sess, err := a.openSession(ctx, url)
	if err != nil {
		return err
	}

	g, err := build(a.guardFactory(sess, extra...))
	if err != nil {
		return usageError(err)
	}

	start := time.Now()
	err = action(ctx, g)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "PASS %s (%s)\n", g.Spec(), elapsed)
	return nil
}
