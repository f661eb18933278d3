package reservoir

import (
	"fmt"
	"math"
	"time"

	"github.com/lox/floodsim/internal/hydro"
	"github.com/lox/floodsim/internal/policy"
)

// Mode selects what an evaluation returns.
type Mode int

const (
	ModeOptimization Mode = iota
	ModeSimulation
)

func (m Mode) String() string {
	switch m {
	case ModeOptimization:
		return "optimization"
	case ModeSimulation:
		return "simulation"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "optimization":
		return ModeOptimization, nil
	case "simulation":
		return ModeSimulation, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Result is the outcome of Evaluate. Trace is only set in simulation mode.
type Result struct {
	Score float64
	Trace *Trace
}

// trajectory is the per-evaluation state buffer, sized to the horizon.
type trajectory struct {
	storage []float64
	release []float64
	target  []float64
	spill   []float64
	rules   []policy.Rule // nil unless recording
	flood   []bool        // nil unless recording

	cost      float64
	floodDays int
	spillDays int
}

// Evaluate runs p over the horizon. In optimization mode only the score is
// returned; in simulation mode the full trace is returned as well.
func (m *Model) Evaluate(p policy.Policy, mode Mode) (Result, error) {
	switch mode {
	case ModeOptimization:
		score, err := m.Optimize(p)
		return Result{Score: score}, err
	case ModeSimulation:
		tr, err := m.Simulate(p)
		if err != nil {
			return Result{}, err
		}
		return Result{Score: tr.Score, Trace: tr}, nil
	}
	return Result{}, fmt.Errorf("evaluate: unknown mode %v", mode)
}

// Optimize returns the scalar objective for p: storage RMSE against history when
// fitting, otherwise the accumulated shortage and flood cost.
func (m *Model) Optimize(p policy.Policy) (float64, error) {
	tr, err := m.run(p, false)
	if err != nil {
		return 0, err
	}
	return m.score(tr), nil
}

// Simulate returns the full daily trace for p.
func (m *Model) Simulate(p policy.Policy) (*Trace, error) {
	tr, err := m.run(p, true)
	if err != nil {
		return nil, err
	}
	return m.newTrace(tr), nil
}

func (m *Model) score(tr *trajectory) float64 {
	if m.cfg.FitHistorical {
		return rmse(tr.storage, m.storage)
	}
	return tr.cost
}

func (m *Model) run(p policy.Policy, record bool) (*trajectory, error) {
	T := len(m.dates)
	K := m.cfg.Capacity
	floodLimit := hydro.CFSToTAF(m.cfg.FloodThresholdCFS)
	Q, D := m.inflow, m.demand

	tr := &trajectory{
		storage: make([]float64, T),
		release: make([]float64, T),
		target:  make([]float64, T),
		spill:   make([]float64, T),
	}
	if record {
		tr.rules = make([]policy.Rule, T)
		tr.flood = make([]bool, T)
	}
	S, R := tr.storage, tr.release

	S[0] = m.storage[0]
	R[0] = D[0]

	for t := 1; t < T; t++ {
		rule := p.Evaluate(policy.Features{Storage: S[t-1], WaterDay: m.waterDay[t]})

		target, err := m.target(rule, t, S[t-1])
		if err != nil {
			return nil, fmt.Errorf("day %d (%s): %w", t, m.dates[t].Format(time.DateOnly), err)
		}
		tr.target[t] = target
		if record {
			tr.rules[t] = rule
		}

		R[t] = math.Min(target, S[t-1]+Q[t])
		R[t] = math.Min(R[t], hydro.MaxRelease(S[t-1]))
		spill := math.Max(S[t-1]+Q[t]-R[t]-K, 0)
		R[t] += spill
		S[t] = S[t-1] + Q[t] - R[t]

		tr.spill[t] = spill
		if spill > 0 {
			tr.spillDays++
		}

		shortage := math.Max(D[t]-R[t], 0)
		tr.cost += shortage * shortage / float64(T)
		if R[t] > floodLimit {
			tr.cost += m.cfg.FloodPenalty
			tr.floodDays++
			if record {
				tr.flood[t] = true
			}
		}
	}

	return tr, nil
}

// target is the release a rule aims for on day t, before bounds are applied.
func (m *Model) target(rule policy.Rule, t int, prior float64) (float64, error) {
	switch rule {
	case policy.ReleaseDemand, policy.Hedge90, policy.Hedge80, policy.Hedge70, policy.Hedge60, policy.Hedge50:
		frac, _ := rule.HedgeFraction()
		return frac * m.demand[t], nil
	case policy.FloodControl:
		ref := m.cfg.FixedFloodReference
		if m.cfg.FitHistorical {
			ref = hydro.TOCS(m.waterDay[t])
		}
		// Draws down a fifth of the water above the reference; never below zero.
		return math.Max(0.2*(m.inflow[t]+prior-ref), 0), nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidPolicyLabel, rule)
	}
}

func rmse(sim, obs []float64) float64 {
	var sum float64
	for i := range sim {
		d := sim[i] - obs[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(sim)))
}
