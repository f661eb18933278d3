package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lox/floodsim/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Dates are stored as civil dates so range queries compare lexically.
func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// SQLite stores NaN as NULL; missing values come back as NaN.
func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// UpsertDays writes historical rows in a single transaction, replacing existing dates.
func (s *Store) UpsertDays(days []models.Day) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO days (date, inflow, storage)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			inflow = excluded.inflow,
			storage = excluded.storage
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.Exec(formatDate(d.Date), d.Inflow, d.Storage); err != nil {
			return 0, fmt.Errorf("upsert day %s: %w", formatDate(d.Date), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(days), nil
}

// GetDays returns the record for [start, end) in date order. A zero end means no upper bound.
func (s *Store) GetDays(start, end time.Time) ([]models.Day, error) {
	upper := "9999-12-31"
	if !end.IsZero() {
		upper = formatDate(end)
	}
	rows, err := s.db.Query(`
		SELECT date, inflow, storage
		FROM days
		WHERE date >= ? AND date < ?
		ORDER BY date ASC
	`, formatDate(start), upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.Day
	for rows.Next() {
		var (
			d               models.Day
			date            string
			inflow, storage sql.NullFloat64
		)
		if err := rows.Scan(&date, &inflow, &storage); err != nil {
			return nil, err
		}
		d.Inflow = nanIfNull(inflow)
		d.Storage = nanIfNull(storage)
		if d.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// GetDayRange returns the first and last stored dates and the row count.
func (s *Store) GetDayRange() (first, last time.Time, count int, err error) {
	var minDate, maxDate sql.NullString
	if err = s.db.QueryRow(`SELECT MIN(date), MAX(date), COUNT(*) FROM days`).Scan(&minDate, &maxDate, &count); err != nil {
		return
	}
	if !minDate.Valid {
		return
	}
	if first, err = parseDate(minDate.String); err != nil {
		return
	}
	last, err = parseDate(maxDate.String)
	return
}

// ReplaceDemand swaps the whole demand table.
func (s *Store) ReplaceDemand(demand []float64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM demand`); err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT INTO demand (water_day, demand) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for wd, v := range demand {
		if _, err := stmt.Exec(wd, v); err != nil {
			return 0, fmt.Errorf("insert demand %d: %w", wd, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(demand), nil
}

// GetDemand returns the demand table indexed by water day.
func (s *Store) GetDemand() ([]float64, error) {
	rows, err := s.db.Query(`SELECT water_day, demand FROM demand ORDER BY water_day ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var demand []float64
	for rows.Next() {
		var e models.DemandEntry
		if err := rows.Scan(&e.WaterDay, &e.Demand); err != nil {
			return nil, err
		}
		if e.WaterDay != len(demand) {
			return nil, fmt.Errorf("demand table has gap at water day %d", len(demand))
		}
		demand = append(demand, e.Demand)
	}
	return demand, rows.Err()
}
