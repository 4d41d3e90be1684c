package searcher

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/exp/rand"
)

type mockState struct {
	path  string
	depth int
}

// mockEnv appends the action to the path. Rewards are looked up per action and
// the conversation ends after horizon turns. With outcomes > 1 a transition
// lands on one of several states at random.
type mockEnv struct {
	state       mockState
	rewards     map[string]float64
	horizon     int
	outcomes    int
	rng         *rand.Rand
	failAfter   int // 0 never fails
	transitions int
}

var errTransition = errors.New("transition failed")

func newMockEnv(horizon int, rewards map[string]float64) *mockEnv {
	return &mockEnv{rewards: rewards, horizon: horizon, outcomes: 1, rng: rand.New(rand.NewSource(7))}
}

func (e *mockEnv) State() mockState { return e.state }

func (e *mockEnv) Transition(ctx context.Context, state mockState, action string, deterministic bool) (mockState, float64, bool, error) {
	if e.failAfter > 0 && e.transitions >= e.failAfter {
		return mockState{}, 0, false, errTransition
	}
	e.transitions++

	next := mockState{path: state.path + "/" + action, depth: state.depth + 1}
	if e.outcomes > 1 && !deterministic {
		next.path += "#" + strconv.Itoa(e.rng.Intn(e.outcomes))
	}
	return next, e.rewards[action], next.depth >= e.horizon, nil
}

func (e *mockEnv) Equal(a, b mockState) bool { return a == b }

type mockRollout struct {
	calls int
}

func (r *mockRollout) Simulate(ctx context.Context, state mockState) (mockState, error) {
	r.calls++
	return mockState{path: state.path + "/end", depth: state.depth + 1}, nil
}

type mockAssessor struct {
	score float64
	err   error
}

func (a mockAssessor) Assess(ctx context.Context, continuation mockState) (float64, error) {
	return a.score, a.err
}

type mockMemory struct {
	scores   []float64
	indices  []int
	outcomes map[int]float64
}

func (m mockMemory) Search(ctx context.Context, query mockState, k int) ([]float64, []int, error) {
	if k < len(m.scores) {
		return m.scores[:k], m.indices[:k], nil
	}
	return m.scores, m.indices, nil
}

func (m mockMemory) Outcome(ctx context.Context, query mockState, idx int) (float64, error) {
	return m.outcomes[idx], nil
}

type mockProposer struct {
	actions []string
	priors  []float64
	calls   int
}

func (p *mockProposer) Propose(ctx context.Context, state mockState) ([]string, []float64, error) {
	p.calls++
	return p.actions, p.priors, nil
}

func rolloutCollaborators(actions ...string) Collaborators[mockState, string] {
	return Collaborators[mockState, string]{
		Actions:  actions,
		Rollout:  &mockRollout{},
		Assessor: mockAssessor{score: 0.5},
	}
}

func newTestMCTS(t interface{ Fatalf(string, ...any) }, params Params, c Collaborators[mockState, string]) *MCTS[mockState, string] {
	m, err := New(params, c, WithSeed(42))
	if err != nil {
		t.Fatalf("failed to create search: %v", err)
	}
	return m
}
