package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type globalFlags struct {
	configPath string
	sim        bool
	logLevel   string
	classifier string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCodeForError(err)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "reqguard",
		Short:         "Assert which kind of request a browser action triggers",
		Long:          "Runs a browser action under a request guard and fails when the action\ntriggers no request, a page request, or an XHR other than the expected one.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (defaults to ~/.reqguard/config.yaml and ./.reqguard/config.yaml)")
	root.PersistentFlags().BoolVar(&flags.sim, "sim", false, "Use the in-memory fixture page instead of Chrome")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&flags.classifier, "classifier", "", "Override browser.classifier (network|script)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newCheckCmd(flags),
		newWaitCmd(flags),
		newFixtureCmd(flags),
		newHistoryCmd(flags),
		newVersionCmd(),
	)
	return root
}
