package searcher

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RolloutPolicy plays a state forward to a completed continuation.
type RolloutPolicy[S any] interface {
	Simulate(ctx context.Context, state S) (S, error)
}

// Assessor scores a completed continuation, typically in [0, 1].
type Assessor[S any] interface {
	Assess(ctx context.Context, continuation S) (float64, error)
}

// Memory retrieves past continuations similar to a state.
type Memory[S any] interface {
	// Search returns up to k similarity scores with the matching instance indices.
	Search(ctx context.Context, query S, k int) ([]float64, []int, error)
	// Outcome returns the precomputed outcome reward of instance idx for query's target.
	Outcome(ctx context.Context, query S, idx int) (float64, error)
}

// ValueFunc is a learned state value.
type ValueFunc[S any] func(ctx context.Context, state S) (float64, error)

// Diagnostics are collected per search, one entry per rollout where applicable.
type Diagnostics[S any] struct {
	Estimates   []float64 // leaf estimate before any value blend
	Rollouts    []S
	Assessments []float64
}

// estimate returns the base estimate of the memory or rollout strategy and the
// value used for backpropagation after the optional blend.
func (m *MCTS[S, A]) estimate(ctx context.Context, leaf *Decision[S, A], lastReward float64, diag *Diagnostics[S]) (float64, float64, error) {
	if leaf.terminal {
		m.metrics.AddTerminalLeaf()
	}

	var base float64
	var err error
	if m.memory != nil {
		base, err = m.estimateFromMemory(ctx, leaf.state)
		if err != nil {
			return 0, 0, err
		}
		base += lastReward * m.params.Gamma
	} else if !leaf.terminal {
		base, err = m.estimateFromRollout(ctx, leaf, diag)
		if err != nil {
			return 0, 0, err
		}
		base += lastReward * m.params.Gamma
	}

	if m.params.Lambda <= 0 {
		return base, base, nil
	}
	value, err := m.value(ctx, leaf.state)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to evaluate value function: %w", err)
	}
	return base, m.params.Lambda*value + (1-m.params.Lambda)*base, nil
}

func (m *MCTS[S, A]) estimateFromMemory(ctx context.Context, state S) (float64, error) {
	scores, indices, err := m.memory.Search(ctx, state, m.params.TopK)
	if err != nil {
		return 0, fmt.Errorf("failed to search memory: %w", err)
	}
	if len(scores) != len(indices) {
		return 0, fmt.Errorf("%w: %d indices, %d scores", ErrScoreMismatch, len(indices), len(scores))
	}
	if len(scores) == 0 {
		return 0, nil
	}

	weights := softmax(scores)
	estimate := 0.0
	for i, idx := range indices {
		outcome, err := m.memory.Outcome(ctx, state, idx)
		if err != nil {
			return 0, fmt.Errorf("failed to read memory outcome %d: %w", idx, err)
		}
		estimate += weights[i] * outcome
	}
	return estimate, nil
}

func (m *MCTS[S, A]) estimateFromRollout(ctx context.Context, leaf *Decision[S, A], diag *Diagnostics[S]) (float64, error) {
	continuation, err := m.rollout.Simulate(ctx, leaf.state)
	if err != nil {
		return 0, fmt.Errorf("failed to simulate rollout: %w", err)
	}
	score, err := m.assessor.Assess(ctx, continuation)
	if err != nil {
		return 0, fmt.Errorf("failed to assess rollout: %w", err)
	}

	leaf.info["rollout"] = continuation
	diag.Rollouts = append(diag.Rollouts, continuation)
	diag.Assessments = append(diag.Assessments, score)
	return score, nil
}

func softmax(scores []float64) []float64 {
	lse := floats.LogSumExp(scores)
	weights := make([]float64, len(scores))
	for i, s := range scores {
		weights[i] = math.Exp(s - lse)
	}
	return weights
}
