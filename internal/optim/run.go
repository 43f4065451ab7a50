package optim

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/index"
)

// Proposer suggests the next query vector inside the given D×2 bounds.
type Proposer interface {
	Propose(ctx context.Context, bounds *mat.Dense) ([]float64, error)
}

// RandomProposer draws every coordinate uniformly between its bounds.
type RandomProposer struct {
	rng *rand.Rand
}

// NewRandomProposer returns a proposer seeded with seed.
func NewRandomProposer(seed int64) *RandomProposer {
	return &RandomProposer{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomProposer) Propose(_ context.Context, bounds *mat.Dense) ([]float64, error) {
	d, _ := bounds.Dims()
	q := make([]float64, d)
	for j := range q {
		lo, hi := bounds.At(j, 0), bounds.At(j, 1)
		q[j] = lo + p.rng.Float64()*(hi-lo)
	}
	return q, nil
}

type runConfig struct {
	logger *zap.Logger
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithLogger sets the logger Run reports iterations to.
func WithLogger(l *zap.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run checks idx's bounds, then proposes, evaluates and steps until steps iterations are done.
// It stops early with ctx's error if ctx is cancelled between iterations.
func Run(ctx context.Context, proposer Proposer, idx index.Index, fn EvaluateFunc, steps int, opts ...RunOption) ([]State, error) {
	cfg := &runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := CheckBounds(idx); err != nil {
		return nil, err
	}

	remaining := NewRemainingSteps(steps)
	states := make([]State, 0, steps)
	for !remaining.Done() {
		if err := ctx.Err(); err != nil {
			return states, err
		}
		query, err := proposer.Propose(ctx, idx.Bounds())
		if err != nil {
			return states, fmt.Errorf("failed to propose query: %w", err)
		}
		state, err := EvaluateIndex(ctx, query, idx, fn)
		if err != nil {
			return states, fmt.Errorf("iteration %d: %w", len(states), err)
		}
		states = append(states, state)
		remaining.Step()

		cfg.logger.Debug("iteration evaluated",
			zap.Int("iteration", len(states)-1),
			zap.Int("row", state.Result.Indices[0][0]),
			zap.Float64("distance", state.Result.Distances[0][0]),
			zap.Float64("evaluation", state.Evaluation),
			zap.Int("remaining", remaining.Count()),
		)
	}
	return states, nil
}

// Best returns the state with the highest evaluation and its position, or -1 if states is empty.
func Best(states []State) (State, int) {
	best := -1
	for i, s := range states {
		if best < 0 || s.Evaluation > states[best].Evaluation {
			best = i
		}
	}
	if best < 0 {
		return State{}, -1
	}
	return states[best], best
}
