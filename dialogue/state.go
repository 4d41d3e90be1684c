package dialogue

import (
	"slices"
	"strings"
)

// Goal is a conversational strategy, e.g. "Recommendation".
type Goal string

const (
	RoleSystem = "assistant"
	RoleUser   = "user"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Goal    Goal   `json:"goal,omitempty"`
}

type Target struct {
	Topic string `json:"topic"`
	Goal  Goal   `json:"goal"`
}

// Demonstration is a one-shot example conversation shown to the language model.
type Demonstration struct {
	TargetGoal   Goal     `json:"target_goal"`
	TargetTopic  string   `json:"target_topic"`
	Conversation []string `json:"conversation"`
	GoalTypes    []string `json:"goal_type_list"`
}

// AgentStarts reports whether the system speaks first.
func (d *Demonstration) AgentStarts() bool {
	return len(d.GoalTypes) > 0 && d.GoalTypes[0] == "Greetings"
}

func (d *Demonstration) equal(o *Demonstration) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.TargetGoal == o.TargetGoal &&
		d.TargetTopic == o.TargetTopic &&
		slices.Equal(d.Conversation, o.Conversation) &&
		slices.Equal(d.GoalTypes, o.GoalTypes)
}

// State is an immutable conversation snapshot. Methods returning a State never
// share slices with the receiver.
type State struct {
	Target        Target         `json:"target"`
	Demonstration *Demonstration `json:"demonstration,omitempty"`
	Turns         []Turn         `json:"turns"`
	Goals         []Goal         `json:"goals"`
	Topics        []string       `json:"topics,omitempty"`
	Knowledge     string         `json:"knowledge,omitempty"`
}

// Extend returns a copy with one system and one user turn appended.
func (s State) Extend(goal Goal, knowledge, system, user string) State {
	next := s.Clone()
	next.Turns = append(next.Turns,
		Turn{Role: RoleSystem, Content: system, Goal: goal},
		Turn{Role: RoleUser, Content: user},
	)
	next.Goals = append(next.Goals, goal)
	next.Knowledge = knowledge
	return next
}

func (s State) Clone() State {
	s.Turns = slices.Clone(s.Turns)
	s.Goals = slices.Clone(s.Goals)
	s.Topics = slices.Clone(s.Topics)
	return s
}

// Equal is structural equality over the whole state.
func (s State) Equal(o State) bool {
	return s.Target == o.Target &&
		s.Knowledge == o.Knowledge &&
		slices.Equal(s.Turns, o.Turns) &&
		slices.Equal(s.Goals, o.Goals) &&
		slices.Equal(s.Topics, o.Topics) &&
		s.Demonstration.equal(o.Demonstration)
}

// LastGoal returns the most recent system goal, or "".
func (s State) LastGoal() Goal {
	if len(s.Goals) == 0 {
		return ""
	}
	return s.Goals[len(s.Goals)-1]
}

// ContextText concatenates the utterances for retrieval.
func (s State) ContextText() string {
	parts := make([]string, len(s.Turns))
	for i, turn := range s.Turns {
		parts[i] = turn.Content
	}
	return strings.Join(parts, " ")
}

// MentionsTarget reports whether any non-user utterance in turns names the
// target topic.
func MentionsTarget(turns []Turn, topic string) bool {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return false
	}
	for _, turn := range turns {
		if turn.Role != RoleUser && strings.Contains(strings.ToLower(turn.Content), topic) {
			return true
		}
	}
	return false
}
