package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/reqguard/pkg/guard"
	"github.com/odvcencio/reqguard/pkg/request"
)

const maxBusyRetries = 3

// RecordRun stores one guard run. It implements guard.Reporter.
func (s *Store) RecordRun(ctx context.Context, run guard.Run) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	op := run.Op
	if op == "" {
		op = "click"
	}

	var err error
	for attempt := 0; attempt <= maxBusyRetries; attempt++ {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO guard_runs (id, session_id, mode, expected, observed, passed, target, op, error, started_at, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.SessionID, run.Mode.String(), run.Expected.String(), run.Observed.String(),
			run.Passed, run.Target, op, run.Error, run.StartedAt.UTC(), run.Elapsed.Milliseconds(),
		)
		if !isBusyError(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	if err != nil {
		return fmt.Errorf("record guard run: %w", err)
	}

	s.notify(newEvent(EventRunRecorded, run.SessionID, run.ID, run))
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]guard.Run, error) {
	query := `
		SELECT id, session_id, mode, expected, observed, passed, target, op, error, started_at, elapsed_ms
		FROM guard_runs
		ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list guard runs: %w", err)
	}
	defer rows.Close()

	var runs []guard.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (guard.Run, error) {
	var (
		run                      guard.Run
		mode, expected, observed string
		elapsedMS                int64
	)
	if err := rows.Scan(&run.ID, &run.SessionID, &mode, &expected, &observed, &run.Passed,
		&run.Target, &run.Op, &run.Error, &run.StartedAt, &elapsedMS); err != nil {
		return guard.Run{}, fmt.Errorf("scan guard run: %w", err)
	}

	var err error
	if run.Mode, err = guard.ParseMode(mode); err != nil {
		return guard.Run{}, fmt.Errorf("guard run %s: %w", run.ID, err)
	}
	if run.Expected, err = parseKindSet(expected); err != nil {
		return guard.Run{}, fmt.Errorf("guard run %s: %w", run.ID, err)
	}
	if run.Observed, err = request.ParseKind(observed); err != nil {
		return guard.Run{}, fmt.Errorf("guard run %s: %w", run.ID, err)
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return run, nil
}

func parseKindSet(raw string) (request.KindSet, error) {
	var kinds []request.Kind
	for _, part := range strings.Split(raw, "|") {
		kind, err := request.ParseKind(part)
		if err != nil {
			return request.KindSet{}, err
		}
		kinds = append(kinds, kind)
	}
	return request.NewKindSet(kinds...)
}

// KindStats counts outcomes for one expected kind set.
type KindStats struct {
	Expected string `json:"expected"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Errored  int    `json:"errored"`
}

// RunStats aggregates run outcomes by expected kinds, ordered by expected.
func (s *Store) RunStats(ctx context.Context) ([]KindStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT expected,
			SUM(CASE WHEN passed THEN 1 ELSE 0 END),
			SUM(CASE WHEN NOT passed AND error = '' THEN 1 ELSE 0 END),
			SUM(CASE WHEN error != '' THEN 1 ELSE 0 END)
		FROM guard_runs
		GROUP BY expected
		ORDER BY expected`)
	if err != nil {
		return nil, fmt.Errorf("guard run stats: %w", err)
	}
	defer rows.Close()

	var stats []KindStats
	for rows.Next() {
		var st KindStats
		if err := rows.Scan(&st.Expected, &st.Passed, &st.Failed, &st.Errored); err != nil {
			return nil, fmt.Errorf("scan guard run stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

var _ guard.Reporter = (*Store)(nil)
