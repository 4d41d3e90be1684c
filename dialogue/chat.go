package dialogue

import (
	"context"
	"fmt"
	"strings"

	"recplan/llm"
)

type ChatConfig struct {
	Temperature float64 // used when dynamics are stochastic
	MaxTokens   int
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{Temperature: 0.7, MaxTokens: 50}
}

func (c ChatConfig) temperature(deterministic bool) float64 {
	if deterministic {
		return 0
	}
	return c.Temperature
}

// DemonstrationMessages renders d as alternating chat messages. With swap the
// roles are exchanged so that the model speaks as the user.
func DemonstrationMessages(d *Demonstration, swap bool) []llm.Message {
	if d == nil {
		return nil
	}
	messages := make([]llm.Message, 0, len(d.Conversation))
	userTurn := !d.AgentStarts()
	for _, utterance := range d.Conversation {
		role := llm.RoleAssistant
		if userTurn != swap {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: utterance})
		userTurn = !userTurn
	}
	return messages
}

// ContextMessages renders turns as chat messages, user turns as the user
// unless swap is set.
func ContextMessages(turns []Turn, swap bool) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		role := llm.RoleAssistant
		if (turn.Role == RoleUser) != swap {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return messages
}

func first(choices []string) (string, error) {
	if len(choices) == 0 {
		return "", llm.ErrNoChoices
	}
	return choices[0], nil
}

// ChatResponder prompts a chat model as the recommender.
type ChatResponder struct {
	chat llm.Chatter
	cfg  ChatConfig
}

func NewChatResponder(chat llm.Chatter, cfg ChatConfig) *ChatResponder {
	return &ChatResponder{chat: chat, cfg: cfg}
}

func (r *ChatResponder) Respond(ctx context.Context, state State, goal Goal, knowledge string, deterministic bool) (string, error) {
	instruction := fmt.Sprintf("You are a recommender. You will be given a set of relevant knowledge "+
		"deliminated by triple backticks ```%s```. Your task is to generate a response following the action ```%s``` "+
		"using the given knowledge. If the action is recommendation, then you need recommend the item %s to the user.",
		knowledge, goal, state.Target.Topic)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: instruction}}
	if demo := DemonstrationMessages(state.Demonstration, false); len(demo) > 0 {
		messages[0].Content += " The following is an example conversation between a recommender and an user."
		messages = append(messages, demo...)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "The following is a new conversation between a recommender (you) and an user."})
	messages = append(messages, ContextMessages(state.Turns, false)...)

	choices, err := r.chat.Chat(ctx, llm.Request{
		Messages:    messages,
		Temperature: r.cfg.temperature(deterministic),
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return first(choices)
}

// ChatUserSimulator prompts a chat model to role-play the seeker.
type ChatUserSimulator struct {
	chat   llm.Chatter
	cfg    ChatConfig
	domain string
}

// NewChatUserSimulator role-plays a user looking for a domain, e.g. "movie recommendation".
func NewChatUserSimulator(chat llm.Chatter, cfg ChatConfig, domain string) *ChatUserSimulator {
	return &ChatUserSimulator{chat: chat, cfg: cfg, domain: domain}
}

func (u *ChatUserSimulator) Reply(ctx context.Context, state State, system string, deterministic bool) (string, error) {
	domain := u.domain
	if domain == "" {
		domain = strings.ToLower(string(state.Target.Goal))
	}

	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf("This is an example of a %s conversation between the user (you) and the system.", domain),
	}}
	messages = append(messages, DemonstrationMessages(state.Demonstration, true)...)
	messages = append(messages, llm.Message{
		Role: llm.RoleSystem,
		Content: fmt.Sprintf("Now enter the role-playing mode. In the following conversation, you will play as an user. "+
			"You are the user who is looking for a %s. Please reply with only one short and succinct sentence.", domain),
	})
	messages = append(messages, ContextMessages(state.Turns, true)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: system})

	choices, err := u.chat.Chat(ctx, llm.Request{
		Messages:    messages,
		Temperature: u.cfg.temperature(deterministic),
		MaxTokens:   u.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return first(choices)
}

// ChatKnowledge prompts a chat model for background knowledge that supports
// the next system turn.
type ChatKnowledge struct {
	chat llm.Chatter
	cfg  ChatConfig
}

func NewChatKnowledge(chat llm.Chatter, cfg ChatConfig) *ChatKnowledge {
	return &ChatKnowledge{chat: chat, cfg: cfg}
}

func (k *ChatKnowledge) Generate(ctx context.Context, state State, goal Goal, deterministic bool) (string, error) {
	instruction := fmt.Sprintf("You are a knowledge generator for a recommender. Given the conversation so far, "+
		"write one or two short sentences of factual knowledge that help the recommender's next response follow the "+
		"action ```%s``` and lead towards the item %s. Reply with the knowledge only.",
		goal, state.Target.Topic)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: instruction}}
	messages = append(messages, ContextMessages(state.Turns, false)...)

	choices, err := k.chat.Chat(ctx, llm.Request{
		Messages:    messages,
		Temperature: k.cfg.temperature(deterministic),
		MaxTokens:   k.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return first(choices)
}

// InitialState opens a conversation about target with the user's reply to the
// system's opening line.
func InitialState(ctx context.Context, user UserSimulator, target Target, demo *Demonstration, opening string) (State, error) {
	state := State{Target: target, Demonstration: demo}
	reply, err := user.Reply(ctx, state, opening, true)
	if err != nil {
		return State{}, fmt.Errorf("failed to simulate opening reply: %w", err)
	}
	state.Turns = []Turn{{Role: RoleUser, Content: reply}}
	return state, nil
}
