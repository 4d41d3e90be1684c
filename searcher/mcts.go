package searcher

import (
	"context"
	"fmt"
	"time"

	"recplan/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// Environment is the world model searched over. Transition must return a fresh
// state and never mutate its input.
type Environment[S any, A comparable] interface {
	State() S
	Transition(ctx context.Context, state S, action A, deterministic bool) (S, float64, bool, error)
	Equal(a, b S) bool
}

// Proposer ranks candidate actions for a state. Scores need not sum to 1.
type Proposer[S any, A comparable] interface {
	Propose(ctx context.Context, state S) ([]A, []float64, error)
}

type Params struct {
	Rollouts      int
	Gamma         float64
	Lambda        float64 // weight of the value function, 0 disables it
	Deterministic bool
	Mode          ValueMode
	TopK          int // memory neighbours per estimate
}

func DefaultParams() Params {
	return Params{
		Rollouts:      100,
		Gamma:         0.9,
		Deterministic: true,
		Mode:          ModeAvg,
		TopK:          10,
	}
}

func (p Params) Validate() error {
	if p.Rollouts <= 0 {
		return fmt.Errorf("%w: rollouts must be positive, got %d", ErrInvalidParams, p.Rollouts)
	}
	if p.Gamma < 0 || p.Gamma > 1 {
		return fmt.Errorf("%w: gamma must lie in [0, 1], got %g", ErrInvalidParams, p.Gamma)
	}
	if p.Lambda < 0 || p.Lambda > 1 {
		return fmt.Errorf("%w: lambda must lie in [0, 1], got %g", ErrInvalidParams, p.Lambda)
	}
	if _, err := ParseValueMode(string(p.Mode)); err != nil {
		return err
	}
	return nil
}

// Collaborators are the pluggable parts of a search. Either Actions or
// Proposer must be set, and either Memory or both Rollout and Assessor.
type Collaborators[S any, A comparable] struct {
	Actions  []A
	Proposer Proposer[S, A]
	Policy   TreePolicy[S, A] // uniform random if nil
	Rollout  RolloutPolicy[S]
	Assessor Assessor[S]
	Memory   Memory[S]
	Value    ValueFunc[S]
}

type Option func(s *settings)

type settings struct {
	seed    uint64
	metrics metrics.Collector
}

func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.seed = seed
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(s *settings) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

type MCTS[S any, A comparable] struct {
	params   Params
	actions  []A
	proposer Proposer[S, A]
	policy   TreePolicy[S, A]
	rollout  RolloutPolicy[S]
	assessor Assessor[S]
	memory   Memory[S]
	value    ValueFunc[S]
	rng      *rand.Rand
	metrics  metrics.Collector
}

type Result[S any, A comparable] struct {
	Action      A
	Tree        *Tree[S, A]
	Diagnostics Diagnostics[S]
	Metric      metrics.SearchMetric
}

// New validates the configuration. All configuration errors surface here,
// before any rollout runs.
func New[S any, A comparable](params Params, c Collaborators[S, A], options ...Option) (*MCTS[S, A], error) {
	s := &settings{ // Default values
		seed:    uint64(time.Now().UnixNano()),
		metrics: metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(s)
	}

	if params.Mode == "" {
		params.Mode = ModeAvg
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Lambda > 0 && c.Value == nil {
		return nil, ErrMissingValueFunc
	}
	if c.Proposer == nil && len(c.Actions) == 0 {
		return nil, ErrNoActions
	}
	if c.Memory == nil && (c.Rollout == nil || c.Assessor == nil) {
		return nil, ErrNoEstimator
	}
	if c.Memory != nil && params.TopK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidParams, params.TopK)
	}

	m := &MCTS[S, A]{
		params:   params,
		actions:  append([]A(nil), c.Actions...),
		proposer: c.Proposer,
		policy:   c.Policy,
		rollout:  c.Rollout,
		assessor: c.Assessor,
		memory:   c.Memory,
		value:    c.Value,
		rng:      rand.New(rand.NewSource(s.seed)),
		metrics:  s.metrics,
	}
	if m.policy == nil {
		m.policy = Uniform[S, A](m.rng)
	}
	return m, nil
}

func (m *MCTS[S, A]) Params() Params { return m.params }

// Search plans from env's current state. A nil tree starts a fresh root; a
// non-nil tree must be rooted at env.State(). terminate is polled before every
// rollout, as is ctx. On error the tree keeps whatever was built so far.
func (m *MCTS[S, A]) Search(ctx context.Context, env Environment[S, A], terminal bool, tree *Tree[S, A], terminate func() bool) (*Result[S, A], error) {
	if terminal {
		return nil, ErrTerminalRoot
	}
	searchID := uuid.NewString()
	logger := log.With().Str("search", searchID).Logger()

	m.metrics.Start(searchID)
	state := env.State()
	reused := tree != nil
	if tree == nil {
		tree = &Tree[S, A]{}
		root, err := m.newNode(ctx, tree, nil, state, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create root: %w", err)
		}
		tree.root = root
	} else {
		if tree.root == nil || !env.Equal(tree.root.state, state) {
			return nil, ErrRootMismatch
		}
		if tree.root.terminal {
			return nil, ErrTerminalRoot
		}
	}
	m.metrics.SetTreeReused(reused)
	logger.Debug().Int("rollouts", m.params.Rollouts).Bool("reused", reused).Msg("search started")

	diag := Diagnostics[S]{}
	for i := 0; i < m.params.Rollouts; i++ {
		if terminate != nil && terminate() {
			logger.Debug().Int("rollout", i).Msg("search terminated early")
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.simulate(ctx, env, tree, &diag); err != nil {
			return nil, fmt.Errorf("rollout %d failed: %w", i, err)
		}
		m.metrics.AddRollout()
	}

	best := bestChild(tree.root.children, m.params.Mode)
	metric := m.metrics.Complete()
	metric.SearchID = searchID
	logger.Info().
		Str("action", fmt.Sprint(best.action)).
		Float64("value", best.Value(m.params.Mode)).
		Int("rollouts", len(diag.Estimates)).
		Msg("search completed")

	return &Result[S, A]{Action: best.action, Tree: tree, Diagnostics: diag, Metric: metric}, nil
}

func (m *MCTS[S, A]) simulate(ctx context.Context, env Environment[S, A], tree *Tree[S, A], diag *Diagnostics[S]) error {
	leaf, rewards, err := m.selectThenExpand(ctx, env, tree)
	if err != nil {
		return err
	}

	lastReward := 0.0
	if len(rewards) > 0 {
		lastReward = rewards[len(rewards)-1]
	}
	base, estimate, err := m.estimate(ctx, leaf, lastReward, diag)
	if err != nil {
		return err
	}
	diag.Estimates = append(diag.Estimates, base)

	backup(leaf, rewards, estimate, m.params.Gamma)
	return nil
}

// selectThenExpand descends from the root until it reaches a terminal decision
// or creates a new one. It returns the leaf and the rewards observed on the way,
// in traversal order.
func (m *MCTS[S, A]) selectThenExpand(ctx context.Context, env Environment[S, A], tree *Tree[S, A]) (*Decision[S, A], []float64, error) {
	node := tree.root
	rewards := make([]float64, 0, 8)
	for {
		if node.terminal {
			return node, rewards, nil
		}

		chance := m.policy.Pick(node.children)
		if chance == nil || chance.parent != node {
			panic("tree policy returned a node outside the candidate set")
		}

		next, reward, done, err := env.Transition(ctx, node.state, chance.action, m.params.Deterministic)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to transition on %v: %w", chance.action, err)
		}
		rewards = append(rewards, reward)

		if child := chance.selects(next, env.Equal); child != nil {
			node = child
			continue
		}

		child, err := m.newNode(ctx, tree, chance, next, done)
		if err != nil {
			return nil, nil, err
		}
		chance.expands(child)
		m.metrics.AddExpansion()
		return child, rewards, nil
	}
}

func (m *MCTS[S, A]) newNode(ctx context.Context, tree *Tree[S, A], parent *Chance[S, A], state S, terminal bool) (*Decision[S, A], error) {
	actions, priors, err := m.candidates(ctx, state, terminal)
	if err != nil {
		return nil, err
	}
	return newDecision(tree.newID(), parent, state, terminal, actions, priors)
}

// candidates queries the proposer, or shuffles the fixed action list with
// uniform priors. Terminal states take no actions.
func (m *MCTS[S, A]) candidates(ctx context.Context, state S, terminal bool) ([]A, []float64, error) {
	if terminal {
		return nil, nil, nil
	}
	if m.proposer != nil {
		actions, priors, err := m.proposer.Propose(ctx, state)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to propose actions: %w", err)
		}
		return actions, priors, nil
	}

	actions := append([]A(nil), m.actions...)
	m.rng.Shuffle(len(actions), func(i, j int) {
		actions[i], actions[j] = actions[j], actions[i]
	})
	priors := make([]float64, len(actions))
	for i := range priors {
		priors[i] = 1 / float64(len(actions))
	}
	return actions, priors, nil
}

// backup folds the leaf estimate into every chance node on the path to the
// root, consuming rewards last in first out.
func backup[S any, A comparable](leaf *Decision[S, A], rewards []float64, estimate, gamma float64) {
	leaf.visits++
	node := leaf
	for node.parent != nil {
		if len(rewards) == 0 {
			panic(ErrUnbalancedRewards)
		}
		reward := rewards[len(rewards)-1]
		rewards = rewards[:len(rewards)-1]

		chance := node.parent
		estimate = reward + gamma*estimate
		chance.record(estimate)
		chance.parent.visits++
		node = chance.parent
	}
	if len(rewards) != 0 {
		panic(ErrUnbalancedRewards)
	}
}
