package reservoir

import (
	"fmt"
	"time"

	"github.com/lox/floodsim/internal/hydro"
	"github.com/lox/floodsim/internal/models"
)

// Series is the dated historical record: inflow (TAF/day) and observed storage (TAF).
type Series struct {
	Dates   []time.Time
	Inflow  []float64
	Storage []float64
}

// SeriesFromDays splits day rows into parallel columns.
func SeriesFromDays(days []models.Day) Series {
	s := Series{
		Dates:   make([]time.Time, len(days)),
		Inflow:  make([]float64, len(days)),
		Storage: make([]float64, len(days)),
	}
	for i, d := range days {
		s.Dates[i] = d.Date
		s.Inflow[i] = d.Inflow
		s.Storage[i] = d.Storage
	}
	return s
}

// Model owns the loaded series of one reservoir and evaluates policies against
// them. It is read-only after construction and safe for concurrent evaluations.
type Model struct {
	cfg      Config
	dates    []time.Time
	waterDay []int
	inflow   []float64
	storage  []float64
	demand   []float64
}

// NewModel aligns a historical series with a demand table indexed by water-year
// day. Misaligned or empty input fails with ErrDataAlignment.
func NewModel(s Series, demandTable []float64, cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	T := len(s.Dates)
	if T == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrDataAlignment)
	}
	if len(s.Inflow) != T || len(s.Storage) != T {
		return nil, fmt.Errorf("%w: %d dates, %d inflow, %d storage values",
			ErrDataAlignment, T, len(s.Inflow), len(s.Storage))
	}

	m := &Model{
		cfg:      cfg,
		dates:    append([]time.Time(nil), s.Dates...),
		waterDay: make([]int, T),
		inflow:   append([]float64(nil), s.Inflow...),
		storage:  append([]float64(nil), s.Storage...),
		demand:   make([]float64, T),
	}

	for t, date := range s.Dates {
		if t > 0 && !nextDay(s.Dates[t-1], date) {
			return nil, fmt.Errorf("%w: %s does not follow %s",
				ErrDataAlignment, date.Format(time.DateOnly), s.Dates[t-1].Format(time.DateOnly))
		}
		wd := hydro.WaterDayOf(date)
		if wd >= len(demandTable) {
			return nil, fmt.Errorf("%w: demand table has %d entries, %s needs water day %d",
				ErrDataAlignment, len(demandTable), date.Format(time.DateOnly), wd)
		}
		m.waterDay[t] = wd
		m.demand[t] = demandTable[wd]
	}

	return m, nil
}

func nextDay(prev, cur time.Time) bool {
	y1, m1, d1 := prev.AddDate(0, 0, 1).Date()
	y2, m2, d2 := cur.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Len is the number of days in the horizon.
func (m *Model) Len() int { return len(m.dates) }

func (m *Model) Config() Config { return m.cfg }

// Start and End bound the horizon; End is the last simulated day.
func (m *Model) Start() time.Time { return m.dates[0] }
func (m *Model) End() time.Time   { return m.dates[len(m.dates)-1] }

// Demand returns the per-day demand aligned to the series.
func (m *Model) Demand() []float64 {
	return append([]float64(nil), m.demand...)
}
