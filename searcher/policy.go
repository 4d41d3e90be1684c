package searcher

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// TreePolicy picks the chance node to descend into. It must return exactly one
// element of the non-empty children slice.
type TreePolicy[S any, A comparable] interface {
	Pick(children []*Chance[S, A]) *Chance[S, A]
}

// PolicyFunc adapts a function to TreePolicy.
type PolicyFunc[S any, A comparable] func(children []*Chance[S, A]) *Chance[S, A]

func (f PolicyFunc[S, A]) Pick(children []*Chance[S, A]) *Chance[S, A] { return f(children) }

// Uniform picks a child uniformly at random.
func Uniform[S any, A comparable](rng *rand.Rand) TreePolicy[S, A] {
	return PolicyFunc[S, A](func(children []*Chance[S, A]) *Chance[S, A] {
		return children[rng.Intn(len(children))]
	})
}

// UCT picks the child maximising q/n + sqrt(c^2*ln(N)/n) over the backed up
// returns, trying unsampled children first.
func UCT[S any, A comparable](cSquared float64) TreePolicy[S, A] {
	return PolicyFunc[S, A](func(children []*Chance[S, A]) *Chance[S, A] {
		policy := newUCT(cSquared, float64(children[0].parent.visits))

		best := children[0]
		maxScore := math.Inf(-1)
		for _, child := range children {
			n := float64(child.Samples())
			if n == 0 { // Prioritize unexplored actions
				return child
			}
			if score := policy.evaluate(floats.Sum(child.returns[1:]), n); score > maxScore {
				maxScore = score
				best = child
			}
		}
		return best
	})
}

// PUCT weighs exploration by the proposer's prior:
// q + cpuct*p*sqrt(N)/(1+n), with q = 0 for unsampled children.
func PUCT[S any, A comparable](cpuct float64) TreePolicy[S, A] {
	return PolicyFunc[S, A](func(children []*Chance[S, A]) *Chance[S, A] {
		sqrtN := math.Sqrt(float64(children[0].parent.visits))

		best := children[0]
		maxScore := math.Inf(-1)
		for _, child := range children {
			n := float64(child.Samples())
			q := 0.0
			if n > 0 {
				q = floats.Sum(child.returns[1:]) / n
			}
			score := q + cpuct*child.prior*sqrtN/(1+n)
			if score > maxScore {
				maxScore = score
				best = child
			}
		}
		return best
	})
}

type uct struct {
	numerator float64
}

func newUCT(cSquared float64, N float64) *uct {
	if N == 0 {
		panic("N cannot be 0")
	}
	return &uct{numerator: cSquared * math.Log(N)}
}

func (u uct) evaluate(q float64, n float64) float64 {
	if n == 0 {
		panic("n cannot be 0")
	}
	// UCT = q/n + sqrt(c^2*ln(N)/n)
	return q/n + math.Sqrt(u.numerator/n)
}
