package dialogue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/rand"
)

// Proposer ranks goals for a state.
type Proposer interface {
	Propose(ctx context.Context, state State) ([]Goal, []float64, error)
}

// StaticProposer offers the same goals with fixed prior weights everywhere.
type StaticProposer struct {
	Goals  []Goal
	Priors []float64
}

func NewUniformProposer(goals []Goal) StaticProposer {
	priors := make([]float64, len(goals))
	for i := range priors {
		priors[i] = 1 / float64(len(goals))
	}
	return StaticProposer{Goals: goals, Priors: priors}
}

func (p StaticProposer) Propose(ctx context.Context, state State) ([]Goal, []float64, error) {
	if len(p.Goals) != len(p.Priors) {
		return nil, nil, fmt.Errorf("static proposer has %d goals and %d priors", len(p.Goals), len(p.Priors))
	}
	return slices.Clone(p.Goals), slices.Clone(p.Priors), nil
}

var ErrNoGoals = errors.New("dialogue: proposer returned no goals")

// Simulator plays a conversation to completion through the environment. It
// is the default rollout policy.
type Simulator struct {
	env      *Env
	proposer Proposer
	greedy   bool
	maxTurns int
	rng      *rand.Rand
}

// NewSimulator plays at most maxTurns exchanges. A greedy simulator always
// plays the top-scored goal, otherwise goals are sampled by score.
func NewSimulator(env *Env, proposer Proposer, greedy bool, maxTurns int, seed uint64) *Simulator {
	return &Simulator{
		env:      env,
		proposer: proposer,
		greedy:   greedy,
		maxTurns: maxTurns,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Simulate returns the completed conversation starting from state.
func (s *Simulator) Simulate(ctx context.Context, state State) (State, error) {
	done := s.env.Terminal(state)
	for i := 0; !done && i < s.maxTurns; i++ {
		goals, scores, err := s.proposer.Propose(ctx, state)
		if err != nil {
			return State{}, fmt.Errorf("failed to propose goal: %w", err)
		}
		if len(goals) == 0 {
			return State{}, ErrNoGoals
		}
		if len(goals) != len(scores) {
			return State{}, fmt.Errorf("proposer returned %d goals and %d scores", len(goals), len(scores))
		}

		goal := s.pick(goals, scores)
		state, _, done, err = s.env.Transition(ctx, state, goal, true)
		if err != nil {
			return State{}, err
		}
	}
	return state, nil
}

// pick plays the top-scored goal when greedy, breaking ties at random, and
// otherwise samples goals in proportion to their scores.
func (s *Simulator) pick(goals []Goal, scores []float64) Goal {
	if s.greedy {
		best := []int{0}
		for i := 1; i < len(scores); i++ {
			switch {
			case scores[i] > scores[best[0]]:
				best = best[:0]
				best = append(best, i)
			case scores[i] == scores[best[0]]:
				best = append(best, i)
			}
		}
		return goals[best[s.rng.Intn(len(best))]]
	}

	total := 0.0
	for _, score := range scores {
		total += max(score, 0)
	}
	if total <= 0 {
		return goals[s.rng.Intn(len(goals))]
	}
	sampled := s.rng.Float64() * total
	cumulative := 0.0
	for i, score := range scores {
		cumulative += max(score, 0)
		if sampled < cumulative {
			return goals[i]
		}
	}
	return goals[len(goals)-1] // Fallback in case of rounding errors
}
