package agent

import (
	"math"

	"recplan/searcher"
)

type ActionProb[A comparable] struct {
	Action      A       `json:"action"`
	Probability float64 `json:"probability"`
}

// VisitPolicy turns the sample counts of the root's children into a
// distribution, sharpened (temperature < 1) or flattened (> 1). Children are
// listed in tree order.
func VisitPolicy[S any, A comparable](tree *searcher.Tree[S, A], temperature float64) []ActionProb[A] {
	if tree == nil || tree.Root() == nil {
		return nil
	}
	children := tree.Root().Children()
	policy := make([]ActionProb[A], len(children))
	if temperature <= 0 {
		temperature = 1
	}

	// Compute temperature-adjusted action probabilities
	exponent := 1.0 / temperature
	sum := 0.0
	for i, child := range children {
		prob := math.Pow(float64(child.Samples()), exponent)
		sum += prob
		policy[i] = ActionProb[A]{Action: child.Action(), Probability: prob}
	}
	// Normalize
	for i := range policy {
		if sum > 0 {
			policy[i].Probability /= sum
		} else {
			policy[i].Probability = 1 / float64(len(policy))
		}
	}
	return policy
}
