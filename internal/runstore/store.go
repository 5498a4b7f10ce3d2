// Package runstore records every pipeline run in a small sqlite ledger:
// run metadata, stage timings and the model leaderboard.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/timeutil"
)

// FileName is the ledger file created in the output directory.
const FileName = "runs.db"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Store is the run ledger.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// StageTiming is the wall time of one pipeline stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Run is one recorded pipeline execution.
type Run struct {
	ID         string
	Task       string
	InputFile  string
	Target     string
	BestModel  string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageTiming
}

// Open opens (creating if needed) the ledger at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	// One connection keeps pragmas and transactions on the same handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure run ledger: %w", err)
	}
	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used for run timestamps.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Begin records a new running run and returns its ID.
func (s *Store) Begin(task, inputFile, target string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(`INSERT INTO runs (run_id, task, input_file, target, status, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?)`, id, task, inputFile, target, StatusRunning, s.clock.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordStage appends a stage timing to the run.
func (s *Store) RecordStage(runID, stage string, d time.Duration) error {
	_, err := s.db.Exec(`INSERT INTO run_stages (run_id, seq, stage, seconds)
		VALUES (?, (SELECT COUNT(*) FROM run_stages WHERE run_id = ?), ?, ?)`,
		runID, runID, stage, d.Seconds())
	if err != nil {
		return fmt.Errorf("insert stage %s: %w", stage, err)
	}
	return nil
}

// RecordLeaderboard stores every cell of the leaderboard, keyed by row
// position and column order.
func (s *Store) RecordLeaderboard(runID string, t *frame.Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO run_leaderboard (run_id, position, model_id, col, metric, value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare leaderboard insert: %w", err)
	}
	defer stmt.Close()

	for r, row := range t.Rows {
		modelID := ""
		if r < len(t.Index) {
			modelID = t.Index[r]
		}
		for c, cell := range row {
			if _, err := stmt.Exec(runID, r, modelID, c, t.Columns[c], cell); err != nil {
				return fmt.Errorf("insert leaderboard row %d: %w", r, err)
			}
		}
	}
	return tx.Commit()
}

// Finish closes the run with its outcome.
func (s *Store) Finish(runID, bestModel string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.Exec(`UPDATE runs SET best_model = ?, status = ?, error = ?, finished_unix_nanos = ?
		WHERE run_id = ?`, bestModel, status, msg, s.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one run with its stage timings.
func (s *Store) Get(runID string) (*Run, error) {
	var r Run
	var best, errMsg sql.NullString
	var started int64
	var finished sql.NullInt64
	err := s.db.QueryRow(`SELECT run_id, task, input_file, target, best_model, status, error,
		started_unix_nanos, finished_unix_nanos FROM runs WHERE run_id = ?`, runID).
		Scan(&r.ID, &r.Task, &r.InputFile, &r.Target, &best, &r.Status, &errMsg, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	r.BestModel, r.Error = best.String, errMsg.String
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}

	rows, err := s.db.Query(`SELECT stage, seconds FROM run_stages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st StageTiming
		var secs float64
		if err := rows.Scan(&st.Stage, &secs); err != nil {
			return nil, err
		}
		st.Duration = time.Duration(secs * float64(time.Second))
		r.Stages = append(r.Stages, st)
	}
	return &r, rows.Err()
}

// Leaderboard rebuilds the recorded leaderboard of a run.
func (s *Store) Leaderboard(runID string) (*frame.Table, error) {
	rows, err := s.db.Query(`SELECT position, model_id, metric, value FROM run_leaderboard
		WHERE run_id = ? ORDER BY position, col`, runID)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	type cell struct {
		pos               int
		id, metric, value string
	}
	var cells []cell
	for rows.Next() {
		var c cell
		if err := rows.Scan(&c.pos, &c.id, &c.metric, &c.value); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, ErrNotFound
	}

	var cols []string
	for _, c := range cells {
		if c.pos == cells[0].pos {
			cols = append(cols, c.metric)
		}
	}
	t := frame.New(cols...)
	for i := 0; i+len(cols) <= len(cells); i += len(cols) {
		row := make([]string, len(cols))
		for j := range row {
			row[j] = cells[i+j].value
		}
		t.Append(cells[i].id, row...)
	}
	return t, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id FROM runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}
