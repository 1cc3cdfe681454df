// Package store keeps the history of scheduling runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"scheduler/internal/engine"
	"scheduler/internal/model"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

// DB wraps sql.DB with the run history schema.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// Run is a stored scheduling pass.
type Run struct {
	ID        string
	CreatedAt time.Time
	Placed    int
	Failed    int
	Skipped   int
	Week      string
}

// PlacementRecord is a stored booking.
type PlacementRecord struct {
	RunID   string
	Day     model.Weekday
	Begin   int
	End     int
	Kind    string
	Entity  string
	Members string
}

// FailureRecord is a stored entity that could not be placed.
type FailureRecord struct {
	RunID   string
	Kind    string
	Entity  string
	Minutes int
	Reason  string
	Message string
}

// NewDB opens the database at path and creates tables if needed.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			placed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			week TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS placements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			kind TEXT NOT NULL,
			entity TEXT NOT NULL,
			members TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			entity TEXT NOT NULL,
			minutes INTEGER NOT NULL,
			reason TEXT NOT NULL,
			message TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_placements_run ON placements(run_id, day, start_min)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// SaveRun stores res under a fresh run id in one transaction.
func (db *DB) SaveRun(ctx context.Context, res *engine.Result, at time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		CreatedAt: at.UTC(),
		Placed:    len(res.Placements),
		Failed:    len(res.Failures),
		Skipped:   len(res.Skipped),
		Week:      res.Week,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, placed, failed, skipped, week) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Placed, run.Failed, run.Skipped, run.Week,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	placeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO placements (run_id, day, start_min, end_min, kind, entity, members) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare placements: %w", err)
	}
	defer placeStmt.Close()

	for _, p := range res.Placements {
		if _, err := placeStmt.ExecContext(ctx,
			run.ID, int(p.Day), p.Interval.Begin, p.Interval.End,
			p.Entity.Kind(), p.Entity.Label(), memberNames(p.Entity),
		); err != nil {
			return nil, fmt.Errorf("insert placement %s: %w", p.Entity.Label(), err)
		}
	}

	for _, f := range res.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, kind, entity, minutes, reason, message) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, f.Entity.Kind(), f.Entity.Label(), f.Entity.RequiredMinutes(), engine.Reason(f.Err), f.Err.Error(),
		); err != nil {
			return nil, fmt.Errorf("insert failure %s: %w", f.Entity.Label(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	db.logger.Info().Str("run_id", run.ID).Int("placed", run.Placed).Int("failed", run.Failed).Msg("Run saved")
	return run, nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, created_at, placed, failed, skipped, week FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the most recently created run.
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, created_at, placed, failed, skipped, week FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.Placed, &r.Failed, &r.Skipped, &r.Week); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// ListPlacements returns the bookings of a run ordered by day and start.
func (db *DB) ListPlacements(ctx context.Context, runID string) ([]PlacementRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, day, start_min, end_min, kind, entity, members
		FROM placements WHERE run_id = ? ORDER BY day, start_min`, runID)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer rows.Close()

	var out []PlacementRecord
	for rows.Next() {
		var p PlacementRecord
		if err := rows.Scan(&p.RunID, &p.Day, &p.Begin, &p.End, &p.Kind, &p.Entity, &p.Members); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListFailures returns the failures of a run in the order they occurred.
func (db *DB) ListFailures(ctx context.Context, runID string) ([]FailureRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, kind, entity, minutes, reason, message
		FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []FailureRecord
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.RunID, &f.Kind, &f.Entity, &f.Minutes, &f.Reason, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes runs created before cutoff along with their rows.
func (db *DB) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	return res.RowsAffected()
}

func memberNames(e model.Schedulable) string {
	g, ok := e.(*model.Group)
	if !ok {
		return ""
	}
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}
