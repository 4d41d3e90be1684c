package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"recplan/metrics"
	"recplan/searcher"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidConfig    = errors.New("agent: invalid configuration")
	ErrMissingValueFunc = searcher.ErrMissingValueFunc
	ErrRootMismatch     = searcher.ErrRootMismatch
)

// Config holds the search hyperparameters. Horizon is enforced by the
// environment and only reported here.
type Config struct {
	Rollouts      int
	Horizon       int
	Gamma         float64
	Deterministic bool
	Lambda        float64
	Mode          searcher.ValueMode
	TopK          int
}

func DefaultConfig() Config {
	return Config{
		Rollouts:      100,
		Horizon:       100,
		Gamma:         0.9,
		Deterministic: true,
		Mode:          searcher.ModeAvg,
		TopK:          10,
	}
}

func (c Config) params() searcher.Params {
	return searcher.Params{
		Rollouts:      c.Rollouts,
		Gamma:         c.Gamma,
		Lambda:        c.Lambda,
		Deterministic: c.Deterministic,
		Mode:          c.Mode,
		TopK:          c.TopK,
	}
}

// Agent plans one action per call and keeps the last tree and the reward
// history across calls. Calls on one agent are serialised.
type Agent[S any, A comparable] struct {
	mu      sync.Mutex
	config  Config
	mcts    *searcher.MCTS[S, A]
	tree    *searcher.Tree[S, A]
	history []float64
	metric  metrics.SearchMetric
}

// New validates cfg against the collaborators before any search runs.
func New[S any, A comparable](cfg Config, c searcher.Collaborators[S, A], options ...searcher.Option) (*Agent[S, A], error) {
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfig, cfg.Horizon)
	}
	if cfg.Lambda > 0 && c.Value == nil {
		return nil, ErrMissingValueFunc
	}
	mcts, err := searcher.New(cfg.params(), c, options...)
	if errors.Is(err, searcher.ErrInvalidParams) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err != nil {
		return nil, err
	}
	cfg.Mode = mcts.Params().Mode

	return &Agent[S, A]{config: cfg, mcts: mcts}, nil
}

// Act plans from a fresh root at env's current state.
func (a *Agent[S, A]) Act(ctx context.Context, env searcher.Environment[S, A], terminal bool) (A, error) {
	return a.ActFrom(ctx, env, terminal, nil)
}

// ActFrom plans reusing tree, whose root must equal env's current state.
func (a *Agent[S, A]) ActFrom(ctx context.Context, env searcher.Environment[S, A], terminal bool, tree *searcher.Tree[S, A]) (A, error) {
	var action A
	result, err := a.Search(ctx, env, terminal, tree)
	if err != nil {
		return action, err
	}
	return result.Action, nil
}

// Search is ActFrom returning the whole result. The result belongs to this
// call even when other calls on the agent run concurrently.
func (a *Agent[S, A]) Search(ctx context.Context, env searcher.Environment[S, A], terminal bool, tree *searcher.Tree[S, A]) (*searcher.Result[S, A], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result, err := a.mcts.Search(ctx, env, terminal, tree, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to plan: %w", err)
	}

	a.tree = result.Tree
	a.history = append(a.history, result.Diagnostics.Estimates...)
	a.metric = result.Metric
	log.Debug().
		Str("search", result.Metric.SearchID).
		Int("history", len(a.history)).
		Dur("duration", result.Metric.Duration).
		Msg("agent acted")
	return result, nil
}

// RewardHistory returns a copy of every per-rollout estimate seen so far.
func (a *Agent[S, A]) RewardHistory() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.history...)
}

// Tree returns the tree of the last successful call, or nil.
func (a *Agent[S, A]) Tree() *searcher.Tree[S, A] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree
}

func (a *Agent[S, A]) LastMetric() metrics.SearchMetric {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metric
}

func (a *Agent[S, A]) Config() Config { return a.config }

// Display renders the configuration.
func (a *Agent[S, A]) Display(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MCTS agent")
	fmt.Fprintf(tw, "rollouts\t%d\n", a.config.Rollouts)
	fmt.Fprintf(tw, "horizon\t%d\n", a.config.Horizon)
	fmt.Fprintf(tw, "gamma\t%g\n", a.config.Gamma)
	fmt.Fprintf(tw, "deterministic\t%t\n", a.config.Deterministic)
	fmt.Fprintf(tw, "lambda\t%g\n", a.config.Lambda)
	fmt.Fprintf(tw, "mode\t%s\n", a.config.Mode)
	fmt.Fprintf(tw, "top-k\t%d\n", a.config.TopK)
	return tw.Flush()
}
