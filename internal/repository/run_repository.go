package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// RunRepository provides data access methods for the runs table.
// Each row journals one pipeline run: its trigger, outcome and summary.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the provided database connection.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, date, trigger, status, started_at, finished_at, summary, error`

// InsertRun journals a run that has just started.
func (r *RunRepository) InsertRun(run model.Run) error {
	query := `
		INSERT INTO runs (id, date, trigger, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, run.ID, run.Date, run.Trigger, run.Status, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. Returns apperrors.ErrRunNotFound
// when no run has the given ID.
func (r *RunRepository) FinishRun(id, status string, finishedAt time.Time, summary *model.RunSummary, runErr error) error {
	var summaryJSON, errMsg any
	if summary != nil {
		raw, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode run summary: %w", err)
		}
		summaryJSON = string(raw)
	}
	if runErr != nil {
		errMsg = runErr.Error()
	}

	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, summary = ?, error = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, status, formatTime(finishedAt), summaryJSON, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// FailInterruptedRuns marks runs left in the running state by a process
// that exited mid-run. Returns the number of runs updated.
func (r *RunRepository) FailInterruptedRuns(finishedAt time.Time) (int64, error) {
	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, error = ?
		WHERE status = ?
	`
	result, err := r.db.Exec(query, model.RunStatusFailed, formatTime(finishedAt),
		"interrupted", model.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

// GetRun retrieves a single run by ID.
// Returns apperrors.ErrRunNotFound if no run exists with the given ID.
func (r *RunRepository) GetRun(id string) (model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, apperrors.ErrRunNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (r *RunRepository) ListRuns(limit int) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var run model.Run
	var startedStr string
	var finishedStr, summaryStr, errStr sql.NullString

	err := s.Scan(&run.ID, &run.Date, &run.Trigger, &run.Status, &startedStr, &finishedStr, &summaryStr, &errStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, err
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt, err = ParseTime(startedStr)
	if err != nil {
		return model.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if finishedStr.Valid {
		finished, err := ParseTime(finishedStr.String)
		if err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
		run.FinishedAt = &finished
	}
	if summaryStr.Valid && summaryStr.String != "" {
		var summary model.RunSummary
		if err := json.Unmarshal([]byte(summaryStr.String), &summary); err != nil {
			return model.Run{}, fmt.Errorf("run %s: failed to decode summary: %w", run.ID, err)
		}
		run.Summary = &summary
	}
	run.Error = errStr.String

	return run, nil
}
