// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/sqlitepool"
)

// schema creates the runs and jobs tables. Applied once per connection
// via the pool's OnConnect hook; idempotent.
const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		workflow     TEXT NOT NULL,
		event        TEXT NOT NULL,
		conclusion   TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		duration_ms  INTEGER NOT NULL,
		job_count    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS jobs (
		run_id       TEXT NOT NULL,
		job_id       TEXT NOT NULL,
		name         TEXT NOT NULL,
		matrix_label TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		duration_ms  INTEGER NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, job_id, matrix_label)
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs(run_id);
`

// Store records completed runs and answers history queries. Safe for
// concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening a history store.
type Config struct {
	// Path is the filesystem path to the history database file. The
	// parent directory must exist. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4 if zero or
	// negative. The history workload is one writer and occasional
	// readers, so small pools suffice.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Open creates or opens the history database and ensures the schema
// exists. The caller must call Close when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Record writes a completed run into the history tables. The run row
// and all job rows are written in a single immediate transaction.
// Re-recording a run ID replaces its previous rows, so a rebuild from
// run.cbor files is idempotent.
func (s *Store) Record(ctx context.Context, record *workflow.RunRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("history: record: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT OR REPLACE INTO runs
		(id, workflow, event, conclusion, started_at, completed_at, duration_ms, job_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.RunID,
				record.Workflow,
				record.Trigger.Type,
				string(record.Conclusion),
				record.StartedAt,
				record.CompletedAt,
				record.DurationMS,
				len(record.Jobs),
			},
		})
	if err != nil {
		return fmt.Errorf("history: insert run %s: %w", record.RunID, err)
	}

	// Replace any job rows from an earlier recording of this run.
	err = sqlitex.Execute(conn, "DELETE FROM jobs WHERE run_id = ?",
		&sqlitex.ExecOptions{Args: []any{record.RunID}})
	if err != nil {
		return fmt.Errorf("history: clear jobs for %s: %w", record.RunID, err)
	}

	for i := range record.Jobs {
		job := &record.Jobs[i]
		err = sqlitex.Execute(conn, `
			INSERT INTO jobs
			(run_id, job_id, name, matrix_label, status, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					record.RunID,
					job.JobID,
					job.Name,
					job.MatrixLabel,
					string(job.Conclusion),
					job.DurationMS,
					job.Error,
				},
			})
		if err != nil {
			return fmt.Errorf("history: insert job %s/%s: %w", record.RunID, job.JobID, err)
		}
	}

	s.logger.Debug("run recorded",
		"run_id", record.RunID,
		"workflow", record.Workflow,
		"conclusion", record.Conclusion,
	)
	return nil
}

// RunSummary is one row of `runs list` output.
type RunSummary struct {
	ID          string `json:"id"`
	Workflow    string `json:"workflow"`
	Event       string `json:"event"`
	Conclusion  string `json:"conclusion"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	DurationMS  int64  `json:"duration_ms"`
	JobCount    int    `json:"job_count"`
}

// JobSummary is one job row joined into `runs show` output.
type JobSummary struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	MatrixLabel string `json:"matrix_label,omitempty"`
	Status      string `json:"status"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// RunDetail is the full history view of one run: its summary row plus
// all job rows. Step-level detail lives in the run's run.cbor, not
// here.
type RunDetail struct {
	RunSummary
	Jobs []JobSummary `json:"jobs"`
}

// Filter narrows a List query. Zero-valued fields are not applied.
type Filter struct {
	// Workflow restricts results to runs of the named workflow.
	Workflow string

	// Conclusion restricts results to runs with this conclusion
	// (success, failure, cancelled).
	Conclusion string

	// Limit caps the number of rows returned. Defaults to 20.
	Limit int
}

// List returns run summaries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]RunSummary, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer s.pool.Put(conn)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var conditions []string
	var args []any

	if filter.Workflow != "" {
		conditions = append(conditions, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Conclusion != "" {
		conditions = append(conditions, "conclusion = ?")
		args = append(args, filter.Conclusion)
	}

	query := "SELECT id, workflow, event, conclusion, started_at, completed_at, duration_ms, job_count FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	var summaries []RunSummary
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			summaries = append(summaries, scanRunSummary(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return summaries, nil
}

// Get returns the full history view of one run. The runID must be
// exact; use ResolveID first to expand a prefix.
func (s *Store) Get(ctx context.Context, runID string) (*RunDetail, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	defer s.pool.Put(conn)

	var detail *RunDetail
	err = sqlitex.Execute(conn,
		"SELECT id, workflow, event, conclusion, started_at, completed_at, duration_ms, job_count FROM runs WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				detail = &RunDetail{RunSummary: scanRunSummary(stmt)}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history: get run %s: %w", runID, err)
	}
	if detail == nil {
		return nil, fmt.Errorf("history: run %s not found", runID)
	}

	err = sqlitex.Execute(conn,
		"SELECT job_id, name, matrix_label, status, duration_ms, error FROM jobs WHERE run_id = ? ORDER BY rowid",
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				detail.Jobs = append(detail.Jobs, JobSummary{
					JobID:       stmt.ColumnText(0),
					Name:        stmt.ColumnText(1),
					MatrixLabel: stmt.ColumnText(2),
					Status:      stmt.ColumnText(3),
					DurationMS:  stmt.ColumnInt64(4),
					Error:       stmt.ColumnText(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history: get jobs for %s: %w", runID, err)
	}

	return detail, nil
}

// ResolveID expands a run ID or unique prefix to the full run ID.
// Accepts the ID with or without the "run-" prefix. Returns an error
// when no run matches or the prefix is ambiguous.
func (s *Store) ResolveID(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("history: empty run ID")
	}
	if !strings.HasPrefix(idOrPrefix, "run-") {
		idOrPrefix = "run-" + idOrPrefix
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("history: resolve: %w", err)
	}
	defer s.pool.Put(conn)

	// Range scan on the primary key: run IDs are [0-9a-z-] so "\x7f"
	// sorts after every possible continuation. Three matches are
	// enough to distinguish exact, unique prefix, and ambiguous.
	var matches []string
	err = sqlitex.Execute(conn,
		"SELECT id FROM runs WHERE id >= ? AND id < ? ORDER BY id LIMIT 3",
		&sqlitex.ExecOptions{
			Args: []any{idOrPrefix, idOrPrefix + "\x7f"},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				matches = append(matches, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("history: resolve %s: %w", idOrPrefix, err)
	}

	switch {
	case len(matches) == 0:
		return "", fmt.Errorf("history: no run matches %q", idOrPrefix)
	case matches[0] == idOrPrefix:
		return matches[0], nil
	case len(matches) == 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("history: run ID %q is ambiguous (%s, %s, ...)",
			idOrPrefix, shortID(matches[0]), shortID(matches[1]))
	}
}

// Prune deletes history rows for runs older than the newest keep runs.
// Returns the number of runs removed. The run directories themselves
// are not touched.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("history: prune: keep must not be negative")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		DELETE FROM jobs WHERE run_id IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`,
		&sqlitex.ExecOptions{Args: []any{keep}})
	if err != nil {
		return 0, fmt.Errorf("history: prune jobs: %w", err)
	}

	err = sqlitex.Execute(conn, `
		DELETE FROM runs WHERE id IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`,
		&sqlitex.ExecOptions{Args: []any{keep}})
	if err != nil {
		return 0, fmt.Errorf("history: prune runs: %w", err)
	}

	removed := conn.Changes()
	if removed > 0 {
		s.logger.Info("history pruned", "removed", removed, "kept", keep)
	}
	return removed, nil
}

func scanRunSummary(stmt *sqlite.Stmt) RunSummary {
	return RunSummary{
		ID:          stmt.ColumnText(0),
		Workflow:    stmt.ColumnText(1),
		Event:       stmt.ColumnText(2),
		Conclusion:  stmt.ColumnText(3),
		StartedAt:   stmt.ColumnText(4),
		CompletedAt: stmt.ColumnText(5),
		DurationMS:  stmt.ColumnInt64(6),
		JobCount:    stmt.ColumnInt(7),
	}
}

// shortID abbreviates a run ID for error messages: the prefix plus the
// first 8 digits.
func shortID(id string) string {
	const visible = len("run-") + 8
	if len(id) <= visible {
		return id
	}
	return id[:visible] + "..."
}
