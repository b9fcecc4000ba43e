package results

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/coordinator"
)

// Store keeps run and batch results in a local sqlite file so repeated
// manual runs can be compared without touching the main database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunRow is one recorded run, newest first in listings.
type RunRow struct {
	RunID             string
	State             string
	StartedAt         time.Time
	FinishedAt        time.Time
	ListingsFound     int
	DuplicatesSkipped int
	BatchesDispatched int
	RecordsUploaded   int
	Errors            int
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "open results db")
	}
	// One writer at a time keeps the file simple; the CLI is single-user.
	db.SetMaxOpenConns(1)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Init creates the result tables if they are missing.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id             TEXT PRIMARY KEY,
			state              TEXT NOT NULL,
			started_at         TIMESTAMP NOT NULL,
			finished_at        TIMESTAMP NOT NULL,
			listings_found     INTEGER NOT NULL,
			duplicates_skipped INTEGER NOT NULL,
			batches_dispatched INTEGER NOT NULL,
			records_uploaded   INTEGER NOT NULL,
			errors             INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS batch_outcomes (
			run_id     TEXT NOT NULL REFERENCES runs(run_id),
			batch_id   TEXT NOT NULL,
			doc_id     TEXT NOT NULL,
			status     TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			uploaded   INTEGER NOT NULL,
			duplicates INTEGER NOT NULL,
			invalid    INTEGER NOT NULL,
			failed     INTEGER NOT NULL,
			PRIMARY KEY (run_id, batch_id)
		);`)
	if err != nil {
		return common.WrapError(err, "init results schema")
	}
	return nil
}

// RecordRun persists a run summary and its per-batch outcomes in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, summary *coordinator.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin results tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, state, started_at, finished_at,
			listings_found, duplicates_skipped, batches_dispatched,
			records_uploaded, errors
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		summary.RunID, string(summary.State), summary.StartedAt, summary.FinishedAt,
		summary.ListingsFound, summary.DuplicatesSkipped, summary.BatchesDispatched,
		summary.RecordsUploaded, len(summary.Errors),
	)
	if err != nil {
		return common.WrapError(err, "insert run")
	}

	for _, o := range summary.Outcomes {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO batch_outcomes (
				run_id, batch_id, doc_id, status, reason,
				uploaded, duplicates, invalid, failed
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			summary.RunID, o.BatchID, o.DocID, string(o.Status), o.Result.Reason,
			o.Result.Uploaded, o.Result.Duplicates, o.Result.Invalid, o.Result.Failed,
		)
		if err != nil {
			return common.WrapError(err, "insert batch outcome")
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(err, "commit results tx")
	}
	s.logger.Info("results.recorded", "run_id", summary.RunID, "batches", len(summary.Outcomes))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, state, started_at, finished_at,
			listings_found, duplicates_skipped, batches_dispatched,
			records_uploaded, errors
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapError(err, "list runs")
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(
			&r.RunID, &r.State, &r.StartedAt, &r.FinishedAt,
			&r.ListingsFound, &r.DuplicatesSkipped, &r.BatchesDispatched,
			&r.RecordsUploaded, &r.Errors,
		); err != nil {
			return nil, common.WrapError(err, "scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
