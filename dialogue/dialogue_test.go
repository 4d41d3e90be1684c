package dialogue

import (
	"context"
	"errors"
	"math"
	"testing"

	"recplan/llm"

	"github.com/stretchr/testify/require"
)

type scriptedResponder struct {
	calls int
}

func (r *scriptedResponder) Respond(ctx context.Context, state State, goal Goal, knowledge string, deterministic bool) (string, error) {
	r.calls++
	if goal == "Recommendation" {
		return "You should watch Inception.", nil
	}
	return "Tell me more about " + string(goal) + knowledge, nil
}

type echoUser struct {
	err error
}

func (u echoUser) Reply(ctx context.Context, state State, system string, deterministic bool) (string, error) {
	return "ok: " + system, u.err
}

type fixedKnowledge string

func (k fixedKnowledge) Generate(ctx context.Context, state State, goal Goal, deterministic bool) (string, error) {
	return string(k), nil
}

func testState() State {
	return State{
		Target: Target{Topic: "Inception", Goal: "Recommendation"},
		Turns:  []Turn{{Role: RoleUser, Content: "hello"}},
	}
}

func TestState(t *testing.T) {
	t.Run("extend does not alias the receiver", func(t *testing.T) {
		base := testState()
		base.Turns = append(make([]Turn, 0, 8), base.Turns...)

		a := base.Extend("Chat", "", "hi", "hey")
		b := base.Extend("Recommendation", "", "watch this", "sure")

		require.Len(t, base.Turns, 1, "Receiver should not change")
		require.Equal(t, "hi", a.Turns[1].Content, "Sibling states should not share backing arrays")
		require.Equal(t, "watch this", b.Turns[1].Content)
		require.Equal(t, Goal("Chat"), a.LastGoal())
		require.Equal(t, Goal("Chat"), a.Turns[1].Goal)
	})

	t.Run("structural equality", func(t *testing.T) {
		a := testState().Extend("Chat", "k", "hi", "hey")
		b := testState().Extend("Chat", "k", "hi", "hey")
		require.True(t, a.Equal(b))
		require.False(t, a.Equal(testState().Extend("Chat", "k", "hi", "no")))

		a.Demonstration = &Demonstration{Conversation: []string{"x"}}
		require.False(t, a.Equal(b), "Demonstration is part of the state")
		b.Demonstration = &Demonstration{Conversation: []string{"x"}}
		require.True(t, a.Equal(b))
	})

	t.Run("context text", func(t *testing.T) {
		s := testState().Extend("Chat", "", "hi", "hey")
		require.Equal(t, "hello hi hey", s.ContextText())
	})
}

func TestRewards(t *testing.T) {
	target := Target{Topic: " Inception ", Goal: "Recommendation"}

	t.Run("target reward", func(t *testing.T) {
		require.Equal(t, TargetBonus, TargetReward([]Turn{{Role: RoleSystem, Content: "Try INCEPTION"}}, target))
		require.Equal(t, 0.0, TargetReward([]Turn{{Role: RoleUser, Content: "inception?"}}, target),
			"User mentions should not count")
	})

	t.Run("outcome reward", func(t *testing.T) {
		p := DefaultOutcomeParams()
		require.InDelta(t, 3*0.8+math.Exp(-4/0.5), OutcomeReward(1, 0.8, 4, p), 1e-12)
		require.InDelta(t, -3*0.2+math.Exp(-4/0.5), OutcomeReward(-1, 0.2, 4, p), 1e-12)
	})
}

func TestEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("transition rewards naming the target", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "Say goodbye", 10)
		state := testState()

		next, reward, done, err := env.Transition(ctx, state, "Recommendation", true)
		require.NoError(t, err)
		require.Equal(t, TargetBonus, reward)
		require.False(t, done)
		require.Len(t, next.Turns, 3)
		require.Len(t, state.Turns, 1, "Transition should not modify its input")

		_, reward, _, err = env.Transition(ctx, state, "Chat", true)
		require.NoError(t, err)
		require.Equal(t, 0.0, reward)
	})

	t.Run("terminal goal ends the conversation", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "Say goodbye", 10)
		_, _, done, err := env.Transition(ctx, testState(), "Say goodbye", true)
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("horizon ends the conversation", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "Say goodbye", 2)
		_, _, done, err := env.Transition(ctx, testState(), "Chat", true)
		require.NoError(t, err)
		require.True(t, done, "Three turns exceed a horizon of two")
	})

	t.Run("knowledge and custom reward", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 10,
			WithKnowledge(fixedKnowledge(" (facts)")),
			WithReward(func(exchange []Turn, target Target) float64 { return float64(len(exchange)) }))

		next, reward, _, err := env.Transition(ctx, testState(), "Chat", true)
		require.NoError(t, err)
		require.Equal(t, 2.0, reward, "Reward should see only the new exchange")
		require.Equal(t, " (facts)", next.Knowledge)
		require.Equal(t, "Tell me more about Chat (facts)", next.Turns[1].Content)
	})

	t.Run("collaborator errors propagate", func(t *testing.T) {
		failure := errors.New("simulator down")
		env := NewEnv(&scriptedResponder{}, echoUser{err: failure}, "", 10)
		_, _, _, err := env.Transition(ctx, testState(), "Chat", true)
		require.ErrorIs(t, err, failure)
	})

	t.Run("step advances the current state", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 10)
		require.Panics(t, func() { env.State() }, "Should panic before Reset")

		env.Reset(testState())
		next, _, _, err := env.Step(ctx, "Chat")
		require.NoError(t, err)
		require.True(t, env.Equal(next, env.State()))
	})
}

func TestSimulator(t *testing.T) {
	ctx := context.Background()

	t.Run("greedy rollout stops at the terminal goal", func(t *testing.T) {
		responder := &scriptedResponder{}
		env := NewEnv(responder, echoUser{}, "Recommendation", 20)
		proposer := StaticProposer{Goals: []Goal{"Chat", "Recommendation"}, Priors: []float64{0.1, 0.9}}

		end, err := NewSimulator(env, proposer, true, 5, 1).Simulate(ctx, testState())
		require.NoError(t, err)
		require.Equal(t, []Goal{"Recommendation"}, end.Goals)
		require.Equal(t, 1, responder.calls)
	})

	t.Run("greedy rollout breaks ties at random", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 100)
		seen := make(map[Goal]bool)
		end, err := NewSimulator(env, NewUniformProposer([]Goal{"Chat", "Ask", "Recommendation"}), true, 30, 7).Simulate(ctx, testState())
		require.NoError(t, err)
		for _, goal := range end.Goals {
			seen[goal] = true
		}
		require.Greater(t, len(seen), 1, "Equal priors should not always play the first goal")
	})

	t.Run("greedy rollout prefers the top score", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 100)
		proposer := StaticProposer{Goals: []Goal{"Chat", "Ask", "Explain"}, Priors: []float64{0.2, 0.5, 0.3}}
		end, err := NewSimulator(env, proposer, true, 4, 7).Simulate(ctx, testState())
		require.NoError(t, err)
		require.Equal(t, []Goal{"Ask", "Ask", "Ask", "Ask"}, end.Goals)
	})

	t.Run("sampled rollout respects the turn limit", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 100)
		end, err := NewSimulator(env, NewUniformProposer([]Goal{"Chat", "Ask"}), false, 3, 1).Simulate(ctx, testState())
		require.NoError(t, err)
		require.Len(t, end.Goals, 3)
	})

	t.Run("terminal state is returned unchanged", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 0)
		state := testState()
		end, err := NewSimulator(env, NewUniformProposer([]Goal{"Chat"}), true, 3, 1).Simulate(ctx, state)
		require.NoError(t, err)
		require.True(t, state.Equal(end))
	})

	t.Run("empty proposal", func(t *testing.T) {
		env := NewEnv(&scriptedResponder{}, echoUser{}, "", 10)
		_, err := NewSimulator(env, StaticProposer{}, true, 3, 1).Simulate(ctx, testState())
		require.ErrorIs(t, err, ErrNoGoals)
	})
}

type recordingChatter struct {
	requests []llm.Request
	reply    string
}

func (c *recordingChatter) Chat(ctx context.Context, req llm.Request) ([]string, error) {
	c.requests = append(c.requests, req)
	return []string{c.reply}, nil
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	state := testState().Extend("Chat", "", "hi there", "I like sci-fi")
	state.Demonstration = &Demonstration{Conversation: []string{"Hello", "Hi, what do you like?"}, GoalTypes: []string{"Greetings"}}

	t.Run("responder speaks as the assistant", func(t *testing.T) {
		chat := &recordingChatter{reply: "How about Inception?"}
		got, err := NewChatResponder(chat, DefaultChatConfig()).Respond(ctx, state, "Recommendation", "facts", true)
		require.NoError(t, err)
		require.Equal(t, "How about Inception?", got)

		req := chat.requests[0]
		require.Equal(t, 0.0, req.Temperature, "Deterministic dynamics use temperature 0")
		require.Contains(t, req.Messages[0].Content, "Inception")
		require.Contains(t, req.Messages[0].Content, "```facts```")
		require.Equal(t, llm.RoleAssistant, req.Messages[1].Role, "Agent-started demonstration opens with the assistant")
		last := req.Messages[len(req.Messages)-1]
		require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "I like sci-fi"}, last)
	})

	t.Run("user simulator swaps roles", func(t *testing.T) {
		chat := &recordingChatter{reply: "Sounds great"}
		got, err := NewChatUserSimulator(chat, DefaultChatConfig(), "movie recommendation").Reply(ctx, state, "Watch Inception", false)
		require.NoError(t, err)
		require.Equal(t, "Sounds great", got)

		req := chat.requests[0]
		require.Equal(t, 0.7, req.Temperature)
		require.Equal(t, llm.RoleUser, req.Messages[1].Role, "Demonstration roles should be swapped")
		n := len(req.Messages)
		require.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "I like sci-fi"}, req.Messages[n-2], "User turns become assistant turns")
		require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Watch Inception"}, req.Messages[n-1])
	})

	t.Run("knowledge targets the goal and item", func(t *testing.T) {
		chat := &recordingChatter{reply: "Inception is a 2010 film about dreams."}
		got, err := NewChatKnowledge(chat, DefaultChatConfig()).Generate(ctx, state, "Recommendation", true)
		require.NoError(t, err)
		require.Equal(t, "Inception is a 2010 film about dreams.", got)

		req := chat.requests[0]
		require.Equal(t, 0.0, req.Temperature)
		require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
		require.Contains(t, req.Messages[0].Content, "```Recommendation```")
		require.Contains(t, req.Messages[0].Content, "Inception")
		require.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "hi there"}, req.Messages[2], "System turns are the assistant's")
		require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "I like sci-fi"}, req.Messages[len(req.Messages)-1])
	})

	t.Run("env passes generated knowledge to the responder", func(t *testing.T) {
		chat := &recordingChatter{reply: "facts about Inception"}
		responder := &recordingChatter{reply: "Watch Inception"}
		env := NewEnv(NewChatResponder(responder, DefaultChatConfig()), echoUser{}, "", 10,
			WithKnowledge(NewChatKnowledge(chat, DefaultChatConfig())))

		next, _, _, err := env.Transition(ctx, testState(), "Recommendation", true)
		require.NoError(t, err)
		require.Equal(t, "facts about Inception", next.Knowledge)
		require.Contains(t, responder.requests[0].Messages[0].Content, "```facts about Inception```")
	})

	t.Run("initial state", func(t *testing.T) {
		chat := &recordingChatter{reply: "I want a movie"}
		s, err := InitialState(ctx, NewChatUserSimulator(chat, DefaultChatConfig(), ""), Target{Topic: "Inception"}, nil, "Hi! How do I help you?")
		require.NoError(t, err)
		require.Equal(t, []Turn{{Role: RoleUser, Content: "I want a movie"}}, s.Turns)
	})
}
