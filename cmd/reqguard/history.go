package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/reqguard/pkg/config"
	"github.com/odvcencio/reqguard/pkg/guard"
	"github.com/odvcencio/reqguard/pkg/logging"
	"github.com/odvcencio/reqguard/pkg/storage"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var (
		limit      int
		format     string
		stats      bool
		logSession string
		migrations bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded guard runs",
		Long: "Lists recorded guard runs. --log prints the structured log of one\n" +
			"session (the session_id column of --format json) and --migrations\n" +
			"prints the run history schema.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return usageError(fmt.Errorf("--format %q is invalid (valid: text, json)", format))
			}
			if stats && (migrations || logSession != "") || migrations && logSession != "" {
				return usageError(errors.New("--stats, --migrations and --log are mutually exclusive"))
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if logSession != "" {
				path := logging.SessionLogPath(config.ResolvePath(cfg.Logging.Dir), logSession)
				events, err := logging.ReadRecentEvents(path, limit)
				if err != nil {
					return fmt.Errorf("session %s: %w", logSession, err)
				}
				return writeEvents(out, format, events)
			}
			if !cfg.Storage.Enabled {
				return usageError(errors.New("run history is disabled (storage.enabled is false)"))
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			if migrations {
				return writeMigrations(out, format, a.store)
			}
			if stats {
				rows, err := a.store.RunStats(cmd.Context())
				if err != nil {
					return err
				}
				return writeStats(out, format, rows)
			}
			runs, err := a.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRuns(out, format, runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show pass/fail counts per expected kind set")
	cmd.Flags().StringVar(&logSession, "log", "", "Show the last --limit log events of a session")
	cmd.Flags().BoolVar(&migrations, "migrations", false, "Show the schema version and applied migrations")
	return cmd
}

type runView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Mode      string    `json:"mode"`
	Expected  string    `json:"expected"`
	Observed  string    `json:"observed"`
	Passed    bool      `json:"passed"`
	Op        string    `json:"op"`
	Target    string    `json:"target"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

func viewRun(run guard.Run) runView {
	return runView{
		ID:        run.ID,
		SessionID: run.SessionID,
		Mode:      run.Mode.String(),
		Expected:  run.Expected.String(),
		Observed:  run.Observed.String(),
		Passed:    run.Passed,
		Op:        run.Op,
		Target:    run.Target,
		Error:     run.Error,
		StartedAt: run.StartedAt,
		ElapsedMS: run.Elapsed.Milliseconds(),
	}
}

func writeRuns(out io.Writer, format string, runs []guard.Run) error {
	if format == "json" {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, viewRun(run))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tEXPECTED\tOBSERVED\tRESULT\tELAPSED\tTARGET")
	for _, run := range runs {
		result := "pass"
		switch {
		case run.Error != "":
			result = "error"
		case !run.Passed:
			result = "fail"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s %s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode, run.Expected, run.Observed, result,
			run.Elapsed.Round(time.Millisecond), run.Op, run.Target)
	}
	return tw.Flush()
}

func writeStats(out io.Writer, format string, rows []storage.KindStats) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPECTED\tPASSED\tFAILED\tERRORED")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.Expected, row.Passed, row.Failed, row.Errored)
	}
	return tw.Flush()
}

func writeEvents(out io.Writer, format string, events []logging.Event) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format("15:04:05.000"),
			ev.Level, ev.Category, ev.EventType, ev.Message)
	}
	return tw.Flush()
}

func writeMigrations(out io.Writer, format string, store *storage.Store) error {
	version, err := store.GetSchemaVersion()
	if err != nil {
		return err
	}
	history, err := store.GetMigrationHistory()
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Version    int                        `json:"version"`
			Migrations []storage.AppliedMigration `json:"migrations"`
		}{version, history})
	}
	fmt.Fprintf(out, "schema version %d\n", version)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, m := range history {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, m.AppliedAt)
	}
	return tw.Flush()
}
