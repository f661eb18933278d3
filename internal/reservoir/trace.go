package reservoir

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/lox/floodsim/internal/hydro"
	"github.com/lox/floodsim/internal/models"
	"github.com/lox/floodsim/internal/policy"
)

// Trace is the simulated daily trajectory alongside the historical record.
// Day 0 is seeded from history and carries policy.RuleNone.
type Trace struct {
	Dates    []time.Time
	WaterDay []int

	// Historical columns.
	Inflow  []float64
	Storage []float64

	SimulatedStorage []float64
	SimulatedRelease []float64
	Spill            []float64
	Demand           []float64
	Target           []float64
	Policy           []policy.Rule
	Flood            []bool // release above the flood threshold

	// Score is what Optimize returns for the same policy.
	Score     float64
	FloodDays int
	SpillDays int
}

func (m *Model) newTrace(tr *trajectory) *Trace {
	return &Trace{
		Dates:            append([]time.Time(nil), m.dates...),
		WaterDay:         append([]int(nil), m.waterDay...),
		Inflow:           append([]float64(nil), m.inflow...),
		Storage:          append([]float64(nil), m.storage...),
		SimulatedStorage: tr.storage,
		SimulatedRelease: tr.release,
		Spill:            tr.spill,
		Demand:           append([]float64(nil), m.demand...),
		Target:           tr.target,
		Policy:           tr.rules,
		Flood:            tr.flood,
		Score:            m.score(tr),
		FloodDays:        tr.floodDays,
		SpillDays:        tr.spillDays,
	}
}

func (tr *Trace) Len() int { return len(tr.Dates) }

// RuleCounts tallies how often each rule was selected.
func (tr *Trace) RuleCounts() map[policy.Rule]int {
	counts := make(map[policy.Rule]int)
	for _, r := range tr.Policy[1:] {
		counts[r]++
	}
	return counts
}

// Rows flattens the trace for storage.
func (tr *Trace) Rows(runID int64) []models.TraceRow {
	rows := make([]models.TraceRow, tr.Len())
	for t := range rows {
		rows[t] = models.TraceRow{
			RunID:            runID,
			Date:             tr.Dates[t],
			Inflow:           tr.Inflow[t],
			Storage:          tr.Storage[t],
			SimulatedStorage: tr.SimulatedStorage[t],
			SimulatedRelease: tr.SimulatedRelease[t],
			Spill:            tr.Spill[t],
			Demand:           tr.Demand[t],
			Target:           tr.Target[t],
			Policy:           tr.Policy[t].String(),
			Flood:            tr.Flood[t],
		}
	}
	return rows
}

var traceHeader = []string{
	"date", "inflow", "storage",
	"simulated_storage", "simulated_release", "spill", "demand", "target", "tocs", "flood", "policy",
}

// WriteCSV writes the trace with the historical columns first.
func (tr *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(traceHeader); err != nil {
		return err
	}
	for t := 0; t < tr.Len(); t++ {
		rec := []string{
			tr.Dates[t].Format(time.DateOnly),
			formatFloat(tr.Inflow[t]),
			formatFloat(tr.Storage[t]),
			formatFloat(tr.SimulatedStorage[t]),
			formatFloat(tr.SimulatedRelease[t]),
			formatFloat(tr.Spill[t]),
			formatFloat(tr.Demand[t]),
			formatFloat(tr.Target[t]),
			formatFloat(hydro.TOCS(tr.WaterDay[t])),
			strconv.FormatBool(tr.Flood[t]),
			tr.Policy[t].String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
