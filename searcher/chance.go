package searcher

// Chance is a tree node labelled by a state-action pair. The state is the
// parent's.
type Chance[S any, A comparable] struct {
	parent   *Decision[S, A]
	action   A
	prior    float64
	depth    int
	children []*Decision[S, A]
	returns  []float64
}

func newChance[S any, A comparable](parent *Decision[S, A], action A, prior float64) *Chance[S, A] {
	return &Chance[S, A]{
		parent:  parent,
		action:  action,
		prior:   prior,
		depth:   parent.depth,
		returns: []float64{0}, // Placeholder until the first rollout completes
	}
}

func (c *Chance[S, A]) Kind() Kind { return KindChance }

func (c *Chance[S, A]) Depth() int { return c.depth }

func (c *Chance[S, A]) Parent() *Decision[S, A] { return c.parent }

func (c *Chance[S, A]) Action() A { return c.action }

// Prior is the proposer's score for the action.
func (c *Chance[S, A]) Prior() float64 { return c.prior }

func (c *Chance[S, A]) Children() []*Decision[S, A] { return c.children }

// Returns is the sequence of backed up returns, starting with the 0 placeholder.
func (c *Chance[S, A]) Returns() []float64 { return c.returns }

// Samples counts the rollouts that passed through this node.
func (c *Chance[S, A]) Samples() int { return len(c.returns) - 1 }

func (c *Chance[S, A]) Expanded() bool { return len(c.children) > 0 }

// selects returns the child already labelled by state, if any.
func (c *Chance[S, A]) selects(state S, equal func(S, S) bool) *Decision[S, A] {
	for _, child := range c.children {
		if equal(child.state, state) {
			return child
		}
	}
	return nil
}

func (c *Chance[S, A]) expands(child *Decision[S, A]) {
	c.children = append(c.children, child)
}

func (c *Chance[S, A]) record(value float64) {
	c.returns = append(c.returns, value)
}
