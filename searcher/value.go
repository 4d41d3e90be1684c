package searcher

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ValueMode selects how a chance node's sampled returns are reduced to a value
// when choosing the final action.
type ValueMode string

const (
	ModeBest   ValueMode = "best"   // max return ever recorded
	ModeSample ValueMode = "sample" // mean of all returns
	// ModeAvg reads only the latest return, not an average.
	// TODO: make this a true mean once recorded reward histories are regenerated.
	ModeAvg ValueMode = "avg"
)

func ParseValueMode(s string) (ValueMode, error) {
	switch mode := ValueMode(s); mode {
	case ModeBest, ModeSample, ModeAvg:
		return mode, nil
	case "":
		return ModeAvg, nil
	default:
		return "", fmt.Errorf("%w: unknown value mode %q", ErrInvalidParams, s)
	}
}

// Value reduces the sampled returns under mode.
func (c *Chance[S, A]) Value(mode ValueMode) float64 {
	if len(c.returns) == 0 {
		return 0
	}
	switch mode {
	case ModeBest:
		return floats.Max(c.returns)
	case ModeSample:
		return stat.Mean(c.returns, nil)
	case ModeAvg:
		return c.returns[len(c.returns)-1]
	default:
		panic(fmt.Sprintf("unknown value mode %q", mode))
	}
}

// bestChild returns the child with maximum value, the first one on ties.
func bestChild[S any, A comparable](children []*Chance[S, A], mode ValueMode) *Chance[S, A] {
	if len(children) == 0 {
		panic("node has no children")
	}
	best := children[0]
	maxValue := best.Value(mode)
	for _, child := range children[1:] {
		if v := child.Value(mode); v > maxValue {
			maxValue = v
			best = child
		}
	}
	return best
}
