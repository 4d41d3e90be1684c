// Package config loads the planner configuration. Values are resolved in the
// order defaults, YAML file, environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"recplan/assess"
	"recplan/dialogue"
	"recplan/memory"
	"recplan/retry"
	"recplan/searcher"
	"recplan/searcher/agent"

	"gopkg.in/yaml.v3"
)

const envPrefix = "RECPLAN_"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Dialogue   DialogueConfig   `yaml:"dialogue"`
	LLM        LLMConfig        `yaml:"llm"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Memory     MemoryConfig     `yaml:"memory"`
	Retry      RetryConfig      `yaml:"retry"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type SearchConfig struct {
	Rollouts      int     `yaml:"rollouts"`
	Gamma         float64 `yaml:"gamma"`
	Lambda        float64 `yaml:"lambda"`
	Mode          string  `yaml:"mode"`
	Deterministic bool    `yaml:"deterministic"`
	TopK          int     `yaml:"k"`

	// Policy is one of uniform, uct or puct.
	Policy      string  `yaml:"policy"`
	Exploration float64 `yaml:"exploration"`
	Seed        uint64  `yaml:"seed"`
}

type DialogueConfig struct {
	Goals        []string `yaml:"goals"`
	TerminalGoal string   `yaml:"terminal_goal"`

	// Horizon bounds the conversation length in turns. The search reports
	// the same value.
	Horizon int    `yaml:"horizon"`
	Domain  string `yaml:"domain"`
	Opening string `yaml:"opening"`

	// Knowledge generates background knowledge before every system turn.
	Knowledge bool `yaml:"knowledge"`

	// RolloutTurns bounds the exchanges played by the default rollout.
	RolloutTurns  int  `yaml:"rollout_turns"`
	GreedyRollout bool `yaml:"greedy_rollout"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

type AssessmentConfig struct {
	Samples     int           `yaml:"samples"`
	Temperature float64       `yaml:"temperature"`
	CacheAddr   string        `yaml:"cache_addr"` // empty disables the redis cache
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type MemoryConfig struct {
	Path           string  `yaml:"path"` // empty disables retrieval
	Dim            int     `yaml:"dim"`
	Epsilon        float64 `yaml:"epsilon"`
	PositiveReward float64 `yaml:"positive_reward"`
	NegativeReward float64 `yaml:"negative_reward"`
	Alpha          float64 `yaml:"alpha"`
	LengthPenalty  float64 `yaml:"length_penalty"`
	Temperature    float64 `yaml:"temperature"`
}

type RetryConfig struct {
	MaxAttempts     uint          `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	Jitter          float64       `yaml:"jitter"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type MetricsConfig struct {
	Prometheus bool   `yaml:"prometheus"`
	Namespace  string `yaml:"namespace"`
	RecordsDir string `yaml:"records_dir"`
}

func Default() Config {
	search := agent.DefaultConfig()
	chat := dialogue.DefaultChatConfig()
	assessment := assess.DefaultConfig()
	mem := memory.DefaultConfig()
	policy := retry.DefaultPolicy()

	return Config{
		Search: SearchConfig{
			Rollouts:      search.Rollouts,
			Gamma:         search.Gamma,
			Lambda:        search.Lambda,
			Mode:          string(search.Mode),
			Deterministic: search.Deterministic,
			TopK:          search.TopK,
			Policy:        "uniform",
			Exploration:   2,
			Seed:          1,
		},
		Dialogue: DialogueConfig{
			Goals:         []string{"Chit-chat", "Ask about preference", "Recommendation", "Say goodbye"},
			TerminalGoal:  "Say goodbye",
			Horizon:       search.Horizon,
			Domain:        "movie recommendation",
			Opening:       "Hello! How can I help you today?",
			Knowledge:     true,
			RolloutTurns:  5,
			GreedyRollout: false,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-3.5-turbo",
			Timeout:     60 * time.Second,
			Temperature: chat.Temperature,
			MaxTokens:   chat.MaxTokens,
		},
		Assessment: AssessmentConfig{
			Samples:     assessment.Samples,
			Temperature: assessment.Temperature,
			CacheTTL:    24 * time.Hour,
		},
		Memory: MemoryConfig{
			Dim:            256,
			Epsilon:        mem.Epsilon,
			PositiveReward: mem.PositiveReward,
			NegativeReward: mem.NegativeReward,
			Alpha:          mem.Outcome.Alpha,
			LengthPenalty:  mem.Outcome.Lambda,
			Temperature:    mem.Outcome.Temperature,
		},
		Retry: RetryConfig{
			MaxAttempts:     policy.MaxAttempts,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
			Multiplier:      policy.Multiplier,
			Jitter:          policy.RandomizationFactor,
		},
		Log:     LogConfig{Level: "info", Console: true},
		Metrics: MetricsConfig{Namespace: "recplan"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file; unknown keys in the file are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envPrefix + "LLM_API_KEY"); ok {
		c.LLM.APIKey = v
	}
	if v, ok := os.LookupEnv(envPrefix + "LLM_BASE_URL"); ok {
		c.LLM.BaseURL = v
	}
	if v, ok := os.LookupEnv(envPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Search.Rollouts > 0, "search.rollouts must be positive, got %d", c.Search.Rollouts)
	check(c.Search.Gamma >= 0 && c.Search.Gamma <= 1, "search.gamma must be in [0, 1], got %v", c.Search.Gamma)
	check(c.Search.Lambda >= 0 && c.Search.Lambda <= 1, "search.lambda must be in [0, 1], got %v", c.Search.Lambda)
	_, err := searcher.ParseValueMode(c.Search.Mode)
	check(err == nil, "search.mode %q", c.Search.Mode)
	switch c.Search.Policy {
	case "uniform", "uct", "puct":
	default:
		check(false, "search.policy must be uniform, uct or puct, got %q", c.Search.Policy)
	}
	check(len(c.Dialogue.Goals) > 0, "dialogue.goals must not be empty")
	check(c.Dialogue.Horizon > 0, "dialogue.horizon must be positive, got %d", c.Dialogue.Horizon)
	check(c.Assessment.Samples > 0, "assessment.samples must be positive, got %d", c.Assessment.Samples)
	check(c.Memory.Path == "" || c.Search.TopK > 0, "search.k must be positive when memory is enabled")
	check(c.Memory.Temperature > 0, "memory.temperature must be positive, got %v", c.Memory.Temperature)

	return errors.Join(errs...)
}

func (c Config) Agent() agent.Config {
	mode, _ := searcher.ParseValueMode(c.Search.Mode)
	return agent.Config{
		Rollouts:      c.Search.Rollouts,
		Horizon:       c.Dialogue.Horizon,
		Gamma:         c.Search.Gamma,
		Deterministic: c.Search.Deterministic,
		Lambda:        c.Search.Lambda,
		Mode:          mode,
		TopK:          c.Search.TopK,
	}
}

func (c Config) Goals() []dialogue.Goal {
	goals := make([]dialogue.Goal, len(c.Dialogue.Goals))
	for i, g := range c.Dialogue.Goals {
		goals[i] = dialogue.Goal(g)
	}
	return goals
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:         c.Retry.MaxAttempts,
		InitialInterval:     c.Retry.InitialInterval,
		MaxInterval:         c.Retry.MaxInterval,
		Multiplier:          c.Retry.Multiplier,
		RandomizationFactor: c.Retry.Jitter,
	}
}

func (c Config) Chat() dialogue.ChatConfig {
	return dialogue.ChatConfig{Temperature: c.LLM.Temperature, MaxTokens: c.LLM.MaxTokens}
}

func (c Config) Assess() assess.Config {
	return assess.Config{
		Samples:     c.Assessment.Samples,
		Temperature: c.Assessment.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

func (c Config) MemoryStore() memory.Config {
	return memory.Config{
		Epsilon:        c.Memory.Epsilon,
		PositiveReward: c.Memory.PositiveReward,
		NegativeReward: c.Memory.NegativeReward,
		Outcome: dialogue.OutcomeParams{
			Alpha:       c.Memory.Alpha,
			Lambda:      c.Memory.LengthPenalty,
			Temperature: c.Memory.Temperature,
		},
	}
}
