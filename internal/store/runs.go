package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/floodsim/internal/models"
)

// StartEvaluationRun records the start of a policy evaluation.
func (s *Store) StartEvaluationRun(run *models.EvaluationRun) error {
	run.StartedAt = time.Now().UTC()
	result, err := s.db.Exec(`
		INSERT INTO evaluation_runs (started_at, policy_name, mode, fit_historical, start_date, end_date, days, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.PolicyName, run.Mode, run.FitHistorical,
		formatDate(run.StartDate), formatDate(run.EndDate), run.Days)
	if err != nil {
		return err
	}
	run.ID, err = result.LastInsertId()
	return err
}

// CompleteEvaluationRun stores the score or failure of a run.
func (s *Store) CompleteEvaluationRun(run *models.EvaluationRun) error {
	if run == nil {
		return nil
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	_, err := s.db.Exec(`
		UPDATE evaluation_runs SET
			finished_at = ?,
			score = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Score, run.Success, run.ErrorMessage, run.ID)
	return err
}

const evaluationRunColumns = `id, started_at, finished_at, policy_name, mode, fit_historical,
	start_date, end_date, days, score, success, error_message`

func scanEvaluationRun(scan func(dest ...any) error) (*models.EvaluationRun, error) {
	var (
		r          models.EvaluationRun
		start, end string
		err        error
	)
	if err := scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.PolicyName, &r.Mode, &r.FitHistorical,
		&start, &end, &r.Days, &r.Score, &r.Success, &r.ErrorMessage); err != nil {
		return nil, err
	}
	if r.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetEvaluationRun returns a run by ID, or nil if it does not exist.
func (s *Store) GetEvaluationRun(id int64) (*models.EvaluationRun, error) {
	row := s.db.QueryRow(`SELECT `+evaluationRunColumns+` FROM evaluation_runs WHERE id = ?`, id)
	r, err := scanEvaluationRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListEvaluationRuns returns recent runs, newest first.
func (s *Store) ListEvaluationRuns(limit int) ([]models.EvaluationRun, error) {
	rows, err := s.db.Query(`SELECT `+evaluationRunColumns+` FROM evaluation_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.EvaluationRun
	for rows.Next() {
		r, err := scanEvaluationRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// InsertTrace stores the daily rows of a simulation run.
func (s *Store) InsertTrace(rows []models.TraceRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trace_rows (run_id, date, inflow, storage, simulated_storage, simulated_release, spill, demand, target, policy, flood)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		policy := sql.NullString{String: r.Policy, Valid: r.Policy != ""}
		if _, err := stmt.Exec(r.RunID, formatDate(r.Date), r.Inflow, r.Storage, r.SimulatedStorage,
			r.SimulatedRelease, r.Spill, r.Demand, r.Target, policy, r.Flood); err != nil {
			return fmt.Errorf("insert trace row %s: %w", formatDate(r.Date), err)
		}
	}
	return tx.Commit()
}

// GetTrace returns the stored trace of a run in date order.
func (s *Store) GetTrace(runID int64) ([]models.TraceRow, error) {
	rows, err := s.db.Query(`
		SELECT date, inflow, storage, simulated_storage, simulated_release, spill, demand, target, policy, flood
		FROM trace_rows
		WHERE run_id = ?
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trace []models.TraceRow
	for rows.Next() {
		var (
			r                   models.TraceRow
			date                string
			inflow, storage     sql.NullFloat64
			simStorage, release sql.NullFloat64
			spill, demand       sql.NullFloat64
			target              sql.NullFloat64
			policy              sql.NullString
		)
		if err := rows.Scan(&date, &inflow, &storage, &simStorage, &release, &spill, &demand, &target, &policy, &r.Flood); err != nil {
			return nil, err
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		r.RunID = runID
		r.Inflow = nanIfNull(inflow)
		r.Storage = nanIfNull(storage)
		r.SimulatedStorage = nanIfNull(simStorage)
		r.SimulatedRelease = nanIfNull(release)
		r.Spill = nanIfNull(spill)
		r.Demand = nanIfNull(demand)
		r.Target = nanIfNull(target)
		r.Policy = policy.String
		trace = append(trace, r)
	}
	return trace, rows.Err()
}
