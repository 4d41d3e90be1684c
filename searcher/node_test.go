package searcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	t.Run("visits every node in pre-order", func(t *testing.T) {
		root, err := newDecision[mockState, string](0, nil, mockState{}, false, []string{"a", "b"}, []float64{0.5, 0.5})
		require.NoError(t, err)
		child, err := newDecision(1, root.children[0], mockState{path: "/a", depth: 1}, true, nil, nil)
		require.NoError(t, err)
		root.children[0].expands(child)

		var kinds []Kind
		Walk[mockState, string](root, func(n Node) { kinds = append(kinds, n.Kind()) })

		require.Equal(t, []Kind{KindDecision, KindChance, KindDecision, KindChance}, kinds,
			"Should visit decision, its chances, then their decisions")
	})

	t.Run("kind names", func(t *testing.T) {
		require.Equal(t, "decision", KindDecision.String())
		require.Equal(t, "chance", KindChance.String())
		require.Equal(t, "Kind(9)", Kind(9).String())
	})
}
