package models

import (
	"database/sql"
	"time"
)

// Day is one row of the historical record: inflow volume (TAF) and observed
// end-of-day storage (TAF).
type Day struct {
	Date    time.Time
	Inflow  float64
	Storage float64
}

// DemandEntry is one day of the fixed demand table, indexed by water-year day.
type DemandEntry struct {
	WaterDay int
	Demand   float64
}

type TraceRow struct {
	RunID            int64
	Date             time.Time
	Inflow           float64
	Storage          float64
	SimulatedStorage float64
	SimulatedRelease float64
	Spill            float64
	Demand           float64
	Target           float64
	Policy           string // empty on day 0
	Flood            bool
}

// EvaluationRun audits a single policy evaluation.
type EvaluationRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	PolicyName    string
	Mode          string // "optimization" or "simulation"
	FitHistorical bool
	StartDate     time.Time
	EndDate       time.Time
	Days          int
	Score         sql.NullFloat64
	Success       bool
	ErrorMessage  sql.NullString
}
