package searcher

import "errors"

var (
	// Configuration errors, raised before any rollout.
	ErrNoActions        = errors.New("searcher: empty action set")
	ErrScoreMismatch    = errors.New("searcher: actions and scores differ in length")
	ErrMissingValueFunc = errors.New("searcher: value function required when lambda > 0")
	ErrNoEstimator      = errors.New("searcher: neither memory nor rollout policy with assessor configured")
	ErrInvalidParams    = errors.New("searcher: invalid search parameters")

	// ErrRootMismatch is returned when a reused tree is not rooted at the
	// environment's current state.
	ErrRootMismatch = errors.New("searcher: reused root does not match environment state")
	// ErrTerminalRoot is returned when asked to plan from a terminal state.
	ErrTerminalRoot = errors.New("searcher: cannot plan from a terminal state")
	// ErrUnbalancedRewards signals a broken reward stack after backpropagation.
	ErrUnbalancedRewards = errors.New("searcher: reward stack not empty after backpropagation")
)
