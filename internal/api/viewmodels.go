package api

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/lox/floodsim/internal/models"
	"github.com/lox/floodsim/internal/store"
)

// JSON cannot carry NaN, so missing values are rendered as null.
func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return optional(v.Float64)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

type DayView struct {
	Date    string   `json:"date"`
	Inflow  *float64 `json:"inflow"`
	Storage *float64 `json:"storage"`
}

func newDayView(d models.Day) DayView {
	return DayView{
		Date:    d.Date.Format(time.DateOnly),
		Inflow:  optional(d.Inflow),
		Storage: optional(d.Storage),
	}
}

type ImportView struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Kind          string     `json:"kind"`
	Source        string     `json:"source"`
	RecordsParsed *int64     `json:"records_parsed,omitempty"`
	RecordsStored *int64     `json:"records_stored,omitempty"`
	QualityFlags  *int64     `json:"quality_flags,omitempty"`
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
}

func newImportView(r store.ImportRun) ImportView {
	return ImportView{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		FinishedAt:    nullTime(r.FinishedAt),
		Kind:          r.Kind,
		Source:        r.Source,
		RecordsParsed: nullInt(r.RecordsParsed),
		RecordsStored: nullInt(r.RecordsStored),
		QualityFlags:  nullInt(r.QualityFlags),
		Success:       r.Success,
		Error:         r.ErrorMessage.String,
	}
}

type RunView struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Policy        string     `json:"policy"`
	Mode          string     `json:"mode"`
	FitHistorical bool       `json:"fit_historical"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	Days          int        `json:"days"`
	Score         *float64   `json:"score"`
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
}

func newRunView(r models.EvaluationRun) RunView {
	return RunView{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		FinishedAt:    nullTime(r.FinishedAt),
		Policy:        r.PolicyName,
		Mode:          r.Mode,
		FitHistorical: r.FitHistorical,
		StartDate:     r.StartDate.Format(time.DateOnly),
		EndDate:       r.EndDate.Format(time.DateOnly),
		Days:          r.Days,
		Score:         nullFloat(r.Score),
		Success:       r.Success,
		Error:         r.ErrorMessage.String,
	}
}

type TraceRowView struct {
	Date             string   `json:"date"`
	Inflow           *float64 `json:"inflow"`
	Storage          *float64 `json:"storage"`
	SimulatedStorage *float64 `json:"simulated_storage"`
	SimulatedRelease *float64 `json:"simulated_release"`
	Spill            *float64 `json:"spill"`
	Demand           *float64 `json:"demand"`
	Target           *float64 `json:"target"`
	Policy           string   `json:"policy,omitempty"`
	Flood            bool     `json:"flood"`
}

func newTraceRowView(r models.TraceRow) TraceRowView {
	return TraceRowView{
		Date:             r.Date.Format(time.DateOnly),
		Inflow:           optional(r.Inflow),
		Storage:          optional(r.Storage),
		SimulatedStorage: optional(r.SimulatedStorage),
		SimulatedRelease: optional(r.SimulatedRelease),
		Spill:            optional(r.Spill),
		Demand:           optional(r.Demand),
		Target:           optional(r.Target),
		Policy:           r.Policy,
		Flood:            r.Flood,
	}
}

// EvaluateRequest is the body of POST /api/evaluate. Exactly one of Tree or
// Rule selects the policy.
type EvaluateRequest struct {
	Name          string          `json:"name"`
	Tree          json.RawMessage `json:"tree,omitempty"`
	Rule          string          `json:"rule,omitempty"`
	Mode          string          `json:"mode"`
	Start         string          `json:"start,omitempty"`
	End           string          `json:"end,omitempty"`
	FitHistorical bool            `json:"fit_historical"`
}

type EvaluateResponse struct {
	RunID      int64          `json:"run_id"`
	Score      *float64       `json:"score"`
	Days       int            `json:"days,omitempty"`
	SpillDays  int            `json:"spill_days,omitempty"`
	FloodDays  int            `json:"flood_days,omitempty"`
	RuleCounts map[string]int `json:"rule_counts,omitempty"`
}
