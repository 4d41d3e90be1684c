package searcher

// Tree owns a root decision and the node id counter. It is returned by Search
// so that callers may reuse it on the next turn.
type Tree[S any, A comparable] struct {
	root   *Decision[S, A]
	nextID int
}

func (t *Tree[S, A]) Root() *Decision[S, A] { return t.root }

// Size counts decision and chance nodes.
func (t *Tree[S, A]) Size() int {
	if t.root == nil {
		return 0
	}
	size := 0
	Walk[S, A](t.root, func(Node) { size++ })
	return size
}

// Advance re-roots the tree at the decision reached by taking action and
// observing state. It reports false if that decision was never expanded, in
// which case the caller should start from a fresh tree.
func (t *Tree[S, A]) Advance(action A, state S, equal func(S, S) bool) (*Tree[S, A], bool) {
	if t == nil || t.root == nil {
		return nil, false
	}
	chance := t.root.Child(action)
	if chance == nil {
		return nil, false
	}
	root := chance.selects(state, equal)
	if root == nil {
		return nil, false
	}

	root.parent = nil
	offset := root.depth
	Walk[S, A](root, func(n Node) {
		switch n.Kind() {
		case KindDecision:
			n.(*Decision[S, A]).depth -= offset
		case KindChance:
			n.(*Chance[S, A]).depth -= offset
		}
	})
	return &Tree[S, A]{root: root, nextID: t.nextID}, true
}

func (t *Tree[S, A]) newID() int {
	id := t.nextID
	t.nextID++
	return id
}
