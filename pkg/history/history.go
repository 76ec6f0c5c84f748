// Package history mirrors installation runs and their per-device
// results into a sqlite database so outcomes survive process restarts.
package history

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/apkfleet/apkfleet"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	apk_path    TEXT NOT NULL,
	log_path    TEXT NOT NULL,
	total       INTEGER NOT NULL,
	success     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS results (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id             TEXT NOT NULL REFERENCES runs(run_id),
	recorded_at        TEXT NOT NULL,
	device             TEXT NOT NULL,
	outcome            TEXT NOT NULL,
	details            TEXT NOT NULL,
	uninstall_verified TEXT NOT NULL,
	install_verified   TEXT NOT NULL,
	launch_status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// Store persists run history. It satisfies apkfleet.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: open sqlite db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "history: apply schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return pkgerrors.Wrap(s.db.Close(), "history: close db")
}

// BeginRun records a new run row.
func (s *Store) BeginRun(ctx context.Context, runID string, cfg *apkfleet.JobConfig, total int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, apk_path, log_path, total) VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().Format(time.RFC3339), cfg.APKPath, cfg.LogPath, total)
	return pkgerrors.Wrap(err, "history: insert run")
}

// RecordResult appends one device outcome to the run.
func (s *Store) RecordResult(ctx context.Context, runID string, rec apkfleet.ResultRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, recorded_at, device, outcome, details, uninstall_verified, install_verified, launch_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Timestamp.Format(time.RFC3339), rec.Device, string(rec.Outcome),
		rec.Details, rec.UninstallVerified, rec.InstallVerified, rec.LaunchStatus)
	return pkgerrors.Wrap(err, "history: insert result")
}

// FinishRun stamps the run's terminal counters.
func (s *Store) FinishRun(ctx context.Context, runID string, success, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, failed = ? WHERE run_id = ?`,
		time.Now().Format(time.RFC3339), success, failed, runID)
	return pkgerrors.Wrap(err, "history: finish run")
}

// RunSummary is one row of stored run history.
type RunSummary struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	APKPath    string
	LogPath    string
	Total      int
	Success    int
	Failed     int
}

// RecentRuns lists up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, COALESCE(finished_at, ''), apk_path, log_path, total, success, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.APKPath, &r.LogPath, &r.Total, &r.Success, &r.Failed); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan run")
		}
		out = append(out, r)
	}
	return out, pkgerrors.Wrap(rows.Err(), "history: iterate runs")
}

// ResultsForRun returns the stored result records of one run in
// completion order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]apkfleet.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recorded_at, device, outcome, details, uninstall_verified, install_verified, launch_status
		 FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query results")
	}
	defer rows.Close()

	var out []apkfleet.ResultRecord
	for rows.Next() {
		var rec apkfleet.ResultRecord
		var ts, outcome string
		if err := rows.Scan(&ts, &rec.Device, &outcome, &rec.Details,
			&rec.UninstallVerified, &rec.InstallVerified, &rec.LaunchStatus); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan result")
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = parsed
		}
		rec.Outcome = apkfleet.Outcome(outcome)
		out = append(out, rec)
	}
	return out, pkgerrors.Wrap(rows.Err(), "history: iterate results")
}
