package evaluation

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lox/floodsim/internal/metrics"
	"github.com/lox/floodsim/internal/models"
	"github.com/lox/floodsim/internal/policy"
	"github.com/lox/floodsim/internal/reservoir"
	"github.com/lox/floodsim/internal/store"
)

// Named pairs a policy with the name it is audited under.
type Named struct {
	Name   string
	Policy policy.Policy
}

// Request describes one evaluation over [Start, End). Zero bounds are open.
type Request struct {
	Named
	Mode          reservoir.Mode
	Start, End    time.Time
	FitHistorical bool
}

type Outcome struct {
	RunID int64
	Score float64
	Trace *reservoir.Trace // simulation mode only
}

// Ranking is one row of a comparison, ordered by score.
type Ranking struct {
	Name  string
	Score float64
	RunID int64
}

// Service evaluates policies against the stored record and audits each run.
type Service struct {
	store *store.Store
	cfg   reservoir.Config
}

func NewService(st *store.Store, cfg reservoir.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// LoadModel builds a reservoir model from the stored days and demand table.
func (s *Service) LoadModel(start, end time.Time, fitHistorical bool) (*reservoir.Model, error) {
	days, err := s.store.GetDays(start, end)
	if err != nil {
		return nil, fmt.Errorf("load days: %w", err)
	}
	demand, err := s.store.GetDemand()
	if err != nil {
		return nil, fmt.Errorf("load demand: %w", err)
	}

	cfg := s.cfg
	cfg.FitHistorical = fitHistorical
	return reservoir.NewModel(reservoir.SeriesFromDays(days), demand, cfg)
}

// startRun records a run over the model's horizon. Without a model the
// requested window is recorded with zero days.
func (s *Service) startRun(name string, mode reservoir.Mode, fitHistorical bool, m *reservoir.Model, start, end time.Time) *models.EvaluationRun {
	run := &models.EvaluationRun{
		PolicyName:    name,
		Mode:          mode.String(),
		FitHistorical: fitHistorical,
		StartDate:     start,
		EndDate:       end,
	}
	if m != nil {
		run.StartDate, run.EndDate, run.Days = m.Start(), m.End(), m.Len()
	}
	if err := s.store.StartEvaluationRun(run); err != nil {
		log.Printf("evaluate: start run: %v", err)
		return nil
	}
	return run
}

func (s *Service) completeRun(run *models.EvaluationRun, score float64, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	} else {
		run.Score = sql.NullFloat64{Float64: score, Valid: true}
	}
	if cerr := s.store.CompleteEvaluationRun(run); cerr != nil {
		log.Printf("evaluate: complete run %d: %v", run.ID, cerr)
	}
}

func observe(mode reservoir.Mode, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.EvaluationsTotal.WithLabelValues(mode.String(), status).Inc()
	metrics.EvaluationLatency.WithLabelValues(mode.String()).Observe(time.Since(started).Seconds())
}

// Run evaluates a single policy. Simulation traces are stored with the run.
func (s *Service) Run(req Request) (*Outcome, error) {
	started := time.Now()
	m, err := s.LoadModel(req.Start, req.End, req.FitHistorical)
	if err != nil {
		observe(req.Mode, started, err)
		s.completeRun(s.startRun(req.Name, req.Mode, req.FitHistorical, nil, req.Start, req.End), 0, err)
		return nil, err
	}

	run := s.startRun(req.Name, req.Mode, req.FitHistorical, m, req.Start, req.End)
	res, err := m.Evaluate(req.Policy, req.Mode)
	observe(req.Mode, started, err)
	s.completeRun(run, res.Score, err)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", req.Name, err)
	}

	out := &Outcome{Score: res.Score, Trace: res.Trace}
	if run != nil {
		out.RunID = run.ID
	}

	if res.Trace != nil {
		metrics.SpillDays.Add(float64(res.Trace.SpillDays))
		metrics.FloodDays.Add(float64(res.Trace.FloodDays))
		if run != nil {
			if err := s.store.InsertTrace(res.Trace.Rows(run.ID)); err != nil {
				log.Printf("evaluate: store trace for run %d: %v", run.ID, err)
			}
		}
	}

	log.Printf("evaluate: %s %s over %d days score=%.6g", req.Name, req.Mode, m.Len(), res.Score)
	return out, nil
}

// Compare scores several policies concurrently over the same horizon and
// returns them best (lowest score) first.
func (s *Service) Compare(ctx context.Context, policies []Named, start, end time.Time, fitHistorical bool, workers int) ([]Ranking, error) {
	started := time.Now()
	m, err := s.LoadModel(start, end, fitHistorical)
	if err == nil {
		ps := make([]policy.Policy, len(policies))
		for i, p := range policies {
			ps[i] = p.Policy
		}
		var scores []float64
		if scores, err = m.OptimizeAll(ctx, ps, workers); err == nil {
			observe(reservoir.ModeOptimization, started, nil)
			return s.rank(policies, scores, m, fitHistorical), nil
		}
	}

	// The batch produced no ranking, so every policy in it is audited as failed.
	observe(reservoir.ModeOptimization, started, err)
	for _, p := range policies {
		s.completeRun(s.startRun(p.Name, reservoir.ModeOptimization, fitHistorical, m, start, end), 0, err)
	}
	return nil, err
}

func (s *Service) rank(policies []Named, scores []float64, m *reservoir.Model, fitHistorical bool) []Ranking {
	rankings := make([]Ranking, len(policies))
	for i, p := range policies {
		rankings[i] = Ranking{Name: p.Name, Score: scores[i]}
		if run := s.startRun(p.Name, reservoir.ModeOptimization, fitHistorical, m, time.Time{}, time.Time{}); run != nil {
			s.completeRun(run, scores[i], nil)
			rankings[i].RunID = run.ID
		}
	}
	sort.SliceStable(rankings, func(a, b int) bool { return rankings[a].Score < rankings[b].Score })

	log.Printf("evaluate: compared %d policies over %d days", len(policies), m.Len())
	return rankings
}

// Baselines returns one constant policy per operating rule.
func Baselines() []Named {
	out := make([]Named, len(policy.Rules))
	for i, r := range policy.Rules {
		out[i] = Named{Name: r.String(), Policy: policy.Constant(r)}
	}
	return out
}
