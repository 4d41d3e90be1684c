package searcher

import "fmt"

// Decision is a tree node labelled by a state.
type Decision[S any, A comparable] struct {
	id       int
	parent   *Chance[S, A]
	state    S
	terminal bool
	depth    int
	visits   int
	children []*Chance[S, A]
	info     map[string]any
}

// newDecision builds a node with one chance child per candidate action, in
// order. Terminal nodes are never descended into and take no children.
func newDecision[S any, A comparable](id int, parent *Chance[S, A], state S, terminal bool, actions []A, priors []float64) (*Decision[S, A], error) {
	if !terminal && len(actions) == 0 {
		return nil, ErrNoActions
	}
	if len(actions) != len(priors) {
		return nil, fmt.Errorf("%w: %d actions, %d scores", ErrScoreMismatch, len(actions), len(priors))
	}

	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}

	d := &Decision[S, A]{
		id:       id,
		parent:   parent,
		state:    state,
		terminal: terminal,
		depth:    depth,
		visits:   1, // Never 0 so that selection scores are always defined
		children: make([]*Chance[S, A], 0, len(actions)),
		info:     make(map[string]any),
	}
	if terminal {
		return d, nil
	}
	for i, action := range actions {
		d.children = append(d.children, newChance(d, action, priors[i]))
	}
	return d, nil
}

func (d *Decision[S, A]) Kind() Kind { return KindDecision }

func (d *Decision[S, A]) Depth() int { return d.depth }

func (d *Decision[S, A]) ID() int { return d.id }

// Parent returns the chance node this state was reached through, nil for the root.
func (d *Decision[S, A]) Parent() *Chance[S, A] { return d.parent }

func (d *Decision[S, A]) State() S { return d.state }

func (d *Decision[S, A]) Terminal() bool { return d.terminal }

func (d *Decision[S, A]) Visits() int { return d.visits }

func (d *Decision[S, A]) Children() []*Chance[S, A] { return d.children }

// Info holds optional diagnostics, e.g. the continuation of a rollout started here.
func (d *Decision[S, A]) Info() map[string]any { return d.info }

// FullyExpanded reports whether every action has been tried at least once.
func (d *Decision[S, A]) FullyExpanded() bool {
	for _, child := range d.children {
		if !child.Expanded() {
			return false
		}
	}
	return true
}

// Child returns the chance node for action, or nil.
func (d *Decision[S, A]) Child(action A) *Chance[S, A] {
	for _, child := range d.children {
		if child.action == action {
			return child
		}
	}
	return nil
}
