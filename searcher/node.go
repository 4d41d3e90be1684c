package searcher

import "fmt"

// Kind tags the two node variants of the search tree.
type Kind int

const (
	KindDecision Kind = iota // labelled by a state
	KindChance               // labelled by a state-action pair
)

func (k Kind) String() string {
	switch k {
	case KindDecision:
		return "decision"
	case KindChance:
		return "chance"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is either a *Decision or a *Chance. Traversals dispatch on Kind.
type Node interface {
	Kind() Kind
	Depth() int
}

// Walk visits n and every node below it in pre-order.
func Walk[S any, A comparable](n Node, visit func(Node)) {
	visit(n)
	switch n.Kind() {
	case KindDecision:
		for _, child := range n.(*Decision[S, A]).children {
			Walk[S, A](child, visit)
		}
	case KindChance:
		for _, child := range n.(*Chance[S, A]).children {
			Walk[S, A](child, visit)
		}
	default:
		panic("unexpected node kind")
	}
}
