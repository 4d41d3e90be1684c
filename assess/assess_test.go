package assess

import (
	"context"
	"errors"
	"testing"
	"time"

	"recplan/dialogue"
	"recplan/llm"
	"recplan/searcher"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	_ searcher.Assessor[dialogue.State] = (*LLMAssessor)(nil)
	_ searcher.Assessor[dialogue.State] = (*Cached)(nil)
)

// verdictChatter answers each request with up to batch verdicts taken in order.
type verdictChatter struct {
	verdicts []string
	batch    int
	requests []llm.Request
	err      error
}

func (c *verdictChatter) Chat(ctx context.Context, req llm.Request) ([]string, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	n := min(req.N, c.batch, len(c.verdicts))
	out := c.verdicts[:n]
	c.verdicts = c.verdicts[n:]
	return out, nil
}

func conversation() dialogue.State {
	return dialogue.State{
		Target: dialogue.Target{Topic: "Inception", Goal: "Movie recommendation"},
		Demonstration: &dialogue.Demonstration{
			TargetGoal:   "Movie recommendation",
			TargetTopic:  "Titanic",
			Conversation: []string{"Hi", "Hello, any movie for me?"},
			GoalTypes:    []string{"Greetings"},
		},
		Turns: []dialogue.Turn{
			{Role: dialogue.RoleUser, Content: "I like dreams"},
			{Role: dialogue.RoleSystem, Content: "Watch Inception"},
			{Role: dialogue.RoleUser, Content: "Great, thanks"},
		},
	}
}

func TestLLMAssessor(t *testing.T) {
	ctx := context.Background()

	t.Run("fraction of accepting verdicts", func(t *testing.T) {
		chat := &verdictChatter{verdicts: []string{"accept", " Accept\n", "reject", "accept."}, batch: 10}
		score, err := NewLLMAssessor(chat, Config{Samples: 4, Temperature: 1.1}).Assess(ctx, conversation())
		require.NoError(t, err)
		require.Equal(t, 0.5, score, "Only exact verdicts count after trimming and case folding")

		req := chat.requests[0]
		require.Equal(t, 4, req.N)
		require.Equal(t, 1.1, req.Temperature)
		require.Contains(t, req.Messages[0].Content, "Titanic")
		require.Equal(t, llm.RoleAssistant, req.Messages[1].Role, "Demonstration keeps its roles")
		last := req.Messages[len(req.Messages)-1]
		require.Equal(t, llm.RoleSystem, last.Role)
		require.Contains(t, last.Content, "Inception")
	})

	t.Run("tops up when fewer choices come back", func(t *testing.T) {
		chat := &verdictChatter{verdicts: []string{"accept", "accept", "reject"}, batch: 1}
		score, err := NewLLMAssessor(chat, Config{Samples: 3}).Assess(ctx, conversation())
		require.NoError(t, err)
		require.InDelta(t, 2.0/3.0, score, 1e-12)
		require.Len(t, chat.requests, 3)
		require.Equal(t, 1, chat.requests[2].N)
	})

	t.Run("empty response", func(t *testing.T) {
		chat := &verdictChatter{batch: 1}
		_, err := NewLLMAssessor(chat, DefaultConfig()).Assess(ctx, conversation())
		require.ErrorIs(t, err, llm.ErrNoChoices)
	})

	t.Run("chat error propagates", func(t *testing.T) {
		failure := errors.New("quota exceeded")
		_, err := NewLLMAssessor(&verdictChatter{err: failure}, DefaultConfig()).Assess(ctx, conversation())
		require.ErrorIs(t, err, failure)
	})
}

type countingAssessor struct {
	score float64
	calls int
	err   error
}

func (a *countingAssessor) Assess(ctx context.Context, state dialogue.State) (float64, error) {
	a.calls++
	return a.score, a.err
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	t.Run("second assessment is served from redis", func(t *testing.T) {
		inner := &countingAssessor{score: 0.7}
		cached := NewCached(inner, rdb, time.Minute)

		for range 2 {
			score, err := cached.Assess(ctx, conversation())
			require.NoError(t, err)
			require.Equal(t, 0.7, score)
		}
		require.Equal(t, 1, inner.calls)
		require.True(t, mr.Exists(Key(conversation())))
	})

	t.Run("entries expire", func(t *testing.T) {
		mr.FlushAll()
		inner := &countingAssessor{score: 0.2}
		cached := NewCached(inner, rdb, time.Minute)

		_, err := cached.Assess(ctx, conversation())
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = cached.Assess(ctx, conversation())
		require.NoError(t, err)
		require.Equal(t, 2, inner.calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		mr.FlushAll()
		failure := errors.New("assessor down")
		cached := NewCached(&countingAssessor{err: failure}, rdb, time.Minute)

		_, err := cached.Assess(ctx, conversation())
		require.ErrorIs(t, err, failure)
		require.False(t, mr.Exists(Key(conversation())))
	})

	t.Run("redis outage falls back to the assessor", func(t *testing.T) {
		down := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1})
		t.Cleanup(func() { client.Close() })
		down.Close()

		inner := &countingAssessor{score: 0.4}
		score, err := NewCached(inner, client, time.Minute).Assess(ctx, conversation())
		require.NoError(t, err)
		require.Equal(t, 0.4, score)
		require.Equal(t, 1, inner.calls)
	})
}

func TestKey(t *testing.T) {
	a := conversation()
	b := conversation()
	b.Demonstration = nil
	require.Equal(t, Key(a), Key(b), "Demonstration does not change the conversation")

	b.Turns[2].Content = "No thanks"
	require.NotEqual(t, Key(a), Key(b))

	c := conversation()
	c.Target.Topic = "Interstellar"
	require.NotEqual(t, Key(a), Key(c))
}
