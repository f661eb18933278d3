package reservoir

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lox/floodsim/internal/policy"
)

// OptimizeAll scores independent policies concurrently, at most workers at a
// time. Scores are returned in the order of policies. The first failure cancels
// evaluations that have not started.
func (m *Model) OptimizeAll(ctx context.Context, policies []policy.Policy, workers int) ([]float64, error) {
	if workers < 1 {
		workers = 1
	}
	scores := make([]float64, len(policies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range policies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := m.Optimize(p)
			if err != nil {
				return fmt.Errorf("policy %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
