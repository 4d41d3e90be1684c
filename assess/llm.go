package assess

import (
	"context"
	"fmt"
	"strings"

	"recplan/dialogue"
	"recplan/llm"
)

const (
	acceptWord = "accept"
	rejectWord = "reject"
)

type Config struct {
	Samples     int
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{Samples: 10, Temperature: 1.1, MaxTokens: 50}
}

// LLMAssessor asks a chat model whether the simulated user accepted the target
// and scores a conversation by the fraction of sampled verdicts that accept.
type LLMAssessor struct {
	chat llm.Chatter
	cfg  Config
}

func NewLLMAssessor(chat llm.Chatter, cfg Config) *LLMAssessor {
	if cfg.Samples <= 0 {
		cfg.Samples = 1
	}
	return &LLMAssessor{chat: chat, cfg: cfg}
}

func (a *LLMAssessor) Assess(ctx context.Context, state dialogue.State) (float64, error) {
	messages := prompt(state)

	verdicts := make([]string, 0, a.cfg.Samples)
	for len(verdicts) < a.cfg.Samples {
		choices, err := a.chat.Chat(ctx, llm.Request{
			Messages:    messages,
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
			N:           a.cfg.Samples - len(verdicts),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to assess conversation: %w", err)
		}
		if len(choices) == 0 {
			return 0, llm.ErrNoChoices
		}
		verdicts = append(verdicts, choices...)
	}

	accepted := 0
	for _, verdict := range verdicts[:a.cfg.Samples] {
		if strings.EqualFold(strings.TrimSpace(verdict), acceptWord) {
			accepted++
		}
	}
	return float64(accepted) / float64(a.cfg.Samples), nil
}

func prompt(state dialogue.State) []llm.Message {
	topic := state.Target.Topic
	var messages []llm.Message
	if d := state.Demonstration; d != nil {
		messages = append(messages, llm.Message{
			Role: llm.RoleSystem,
			Content: fmt.Sprintf("This is an example of a %s conversation between an user (you) and the system. "+
				"In this conversation, the user (you) accepted the item: %s", d.TargetGoal, d.TargetTopic),
		})
		messages = append(messages, dialogue.DemonstrationMessages(d, false)...)
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: "The following is a new conversation between a recommender and an user.",
	})
	messages = append(messages, dialogue.ContextMessages(state.Turns, false)...)
	messages = append(messages, llm.Message{
		Role: llm.RoleSystem,
		Content: fmt.Sprintf("Based on the given conversation, you need to infer the attitude of the user towards the "+
			"target item: %s. You need to infer if the user is happy and willing to accept the target item: %s. "+
			"If the user is happy, you need to generate the word: %s. "+
			"If the user is confused or not willing to accept the item: %s, you need to generate the word: %s.",
			topic, topic, acceptWord, topic, rejectWord),
	})
	return messages
}
