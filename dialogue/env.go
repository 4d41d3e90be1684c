package dialogue

import (
	"context"
	"errors"
	"fmt"
)

// Knowledge produces background knowledge for the next system turn.
type Knowledge interface {
	Generate(ctx context.Context, state State, goal Goal, deterministic bool) (string, error)
}

// Responder writes the system utterance pursuing goal.
type Responder interface {
	Respond(ctx context.Context, state State, goal Goal, knowledge string, deterministic bool) (string, error)
}

// UserSimulator writes the user's reply to a system utterance.
type UserSimulator interface {
	Reply(ctx context.Context, state State, system string, deterministic bool) (string, error)
}

var ErrNoState = errors.New("dialogue: environment has not been reset")

type EnvOption func(e *Env)

func WithKnowledge(knowledge Knowledge) EnvOption {
	return func(e *Env) {
		e.knowledge = knowledge
	}
}

func WithReward(reward RewardFunc) EnvOption {
	return func(e *Env) {
		if reward != nil {
			e.reward = reward
		}
	}
}

// Env is the conversational world model. A conversation ends when the system
// plays the terminal goal or the context grows past the horizon.
type Env struct {
	state        *State
	responder    Responder
	user         UserSimulator
	knowledge    Knowledge
	reward       RewardFunc
	terminalGoal Goal
	horizon      int
}

func NewEnv(responder Responder, user UserSimulator, terminalGoal Goal, horizon int, options ...EnvOption) *Env {
	e := &Env{ // Default values
		responder:    responder,
		user:         user,
		reward:       TargetReward,
		terminalGoal: terminalGoal,
		horizon:      horizon,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *Env) Reset(state State) State {
	s := state.Clone()
	e.state = &s
	return s
}

// State returns the current state. It panics before Reset.
func (e *Env) State() State {
	if e.state == nil {
		panic(ErrNoState)
	}
	return *e.state
}

func (e *Env) Horizon() int { return e.horizon }

// Terminal reports whether no further turn may be played from state.
func (e *Env) Terminal(state State) bool {
	return (e.terminalGoal != "" && state.LastGoal() == e.terminalGoal) || len(state.Turns) > e.horizon
}

// Transition plays goal from state: knowledge, system response, then the
// simulated user reply. state is not modified.
func (e *Env) Transition(ctx context.Context, state State, goal Goal, deterministic bool) (State, float64, bool, error) {
	knowledge := ""
	if e.knowledge != nil {
		var err error
		knowledge, err = e.knowledge.Generate(ctx, state, goal, deterministic)
		if err != nil {
			return State{}, 0, false, fmt.Errorf("failed to generate knowledge: %w", err)
		}
	}

	system, err := e.responder.Respond(ctx, state, goal, knowledge, deterministic)
	if err != nil {
		return State{}, 0, false, fmt.Errorf("failed to generate system response: %w", err)
	}
	user, err := e.user.Reply(ctx, state, system, deterministic)
	if err != nil {
		return State{}, 0, false, fmt.Errorf("failed to simulate user response: %w", err)
	}

	next := state.Extend(goal, knowledge, system, user)
	reward := e.reward(next.Turns[len(state.Turns):], state.Target)
	return next, reward, e.Terminal(next), nil
}

// Step plays goal from the current state and advances it.
func (e *Env) Step(ctx context.Context, goal Goal) (State, float64, bool, error) {
	next, reward, done, err := e.Transition(ctx, e.State(), goal, true)
	if err != nil {
		return State{}, 0, false, err
	}
	e.state = &next
	return next, reward, done, nil
}

func (e *Env) Equal(a, b State) bool { return a.Equal(b) }
