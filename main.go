package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recplan/assess"
	"recplan/config"
	"recplan/dialogue"
	"recplan/llm"
	"recplan/memory"
	"recplan/metrics"
	"recplan/searcher"
	"recplan/searcher/agent"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type dialogueAgent = agent.Agent[dialogue.State, dialogue.Goal]

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	statePath := flag.String("state", "", "Path to a JSON dialogue state to plan from")
	topic := flag.String("topic", "", "Target topic; opens a new conversation when -state is not set")
	turns := flag.Int("turns", 1, "Number of turns to play, reusing the tree between turns")
	serve := flag.String("serve", "", "Address to serve POST /act and /metrics on, e.g. :8080")
	records := flag.String("records", "", "Directory for reward history and search record CSVs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *statePath, *topic, *turns, *serve, *records); err != nil {
		log.Fatal().Err(err).Msg("recplan failed")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

// world bundles the language-model collaborators shared by every environment.
type world struct {
	cfg       config.Config
	responder dialogue.Responder
	user      dialogue.UserSimulator
	knowledge dialogue.Knowledge // nil disables knowledge generation
}

func (w world) newEnv() *dialogue.Env {
	var options []dialogue.EnvOption
	if w.knowledge != nil {
		options = append(options, dialogue.WithKnowledge(w.knowledge))
	}
	return dialogue.NewEnv(w.responder, w.user, dialogue.Goal(w.cfg.Dialogue.TerminalGoal), w.cfg.Dialogue.Horizon, options...)
}

func (w world) env(state dialogue.State) *dialogue.Env {
	env := w.newEnv()
	env.Reset(state)
	return env
}

func run(ctx context.Context, cfg config.Config, statePath, topic string, turns int, serve, records string) error {
	client := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
		Retry:   cfg.RetryPolicy(),
	})
	w := world{
		cfg:       cfg,
		responder: dialogue.NewChatResponder(client, cfg.Chat()),
		user:      dialogue.NewChatUserSimulator(client, cfg.Chat(), cfg.Dialogue.Domain),
	}
	if cfg.Dialogue.Knowledge {
		w.knowledge = dialogue.NewChatKnowledge(client, cfg.Chat())
	}

	collaborators, cleanup, err := buildCollaborators(ctx, cfg, client, w)
	if err != nil {
		return err
	}
	defer cleanup()

	collector := metrics.NewCollector()
	if cfg.Metrics.Prometheus {
		collector, err = metrics.NewPrometheusCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	planner, err := agent.New(cfg.Agent(), collaborators,
		searcher.WithSeed(cfg.Search.Seed), searcher.WithMetrics(collector))
	if err != nil {
		return err
	}
	if err := planner.Display(os.Stderr); err != nil {
		return err
	}

	if serve != "" {
		return listen(ctx, serve, planner, w)
	}

	state, err := initialState(ctx, statePath, topic, w)
	if err != nil {
		return err
	}
	return play(ctx, planner, w.env(state), turns, records)
}

func buildCollaborators(ctx context.Context, cfg config.Config, chat llm.Chatter, w world) (searcher.Collaborators[dialogue.State, dialogue.Goal], func(), error) {
	goals := cfg.Goals()
	proposer := dialogue.NewUniformProposer(goals)
	c := searcher.Collaborators[dialogue.State, dialogue.Goal]{
		Actions:  goals,
		Proposer: proposer,
	}
	cleanup := func() {}

	switch cfg.Search.Policy {
	case "uct":
		c.Policy = searcher.UCT[dialogue.State, dialogue.Goal](cfg.Search.Exploration)
	case "puct":
		c.Policy = searcher.PUCT[dialogue.State, dialogue.Goal](cfg.Search.Exploration)
	}

	if cfg.Memory.Path != "" {
		store, err := memory.Load(ctx, cfg.Memory.Path, memory.NewHashEmbedder(cfg.Memory.Dim), cfg.MemoryStore())
		if err != nil {
			return c, cleanup, err
		}
		c.Memory = store
		return c, cleanup, nil
	}

	c.Rollout = dialogue.NewSimulator(w.newEnv(), proposer, cfg.Dialogue.GreedyRollout, cfg.Dialogue.RolloutTurns, cfg.Search.Seed)

	var assessor searcher.Assessor[dialogue.State] = assess.NewLLMAssessor(chat, cfg.Assess())
	if cfg.Assessment.CacheAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Assessment.CacheAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Assessment.CacheAddr).Msg("assessment cache unreachable")
		}
		assessor = assess.NewCached(assessor, rdb, cfg.Assessment.CacheTTL)
		cleanup = func() { rdb.Close() }
	}
	c.Assessor = assessor
	return c, cleanup, nil
}

func initialState(ctx context.Context, statePath, topic string, w world) (dialogue.State, error) {
	if statePath != "" {
		data, err := os.ReadFile(statePath)
		if err != nil {
			return dialogue.State{}, fmt.Errorf("failed to read state: %w", err)
		}
		var state dialogue.State
		if err := json.Unmarshal(data, &state); err != nil {
			return dialogue.State{}, fmt.Errorf("failed to decode state: %w", err)
		}
		return state, nil
	}
	if topic == "" {
		return dialogue.State{}, errors.New("either -state or -topic is required")
	}
	target := dialogue.Target{Topic: topic, Goal: "Recommendation"}
	return dialogue.InitialState(ctx, w.user, target, nil, w.cfg.Dialogue.Opening)
}

// play plans and executes up to turns goals, carrying the searched subtree
// over to the next turn when the observed state was already explored.
func play(ctx context.Context, planner *dialogueAgent, env *dialogue.Env, turns int, records string) error {
	var history []metrics.SearchRecord
	var tree *searcher.Tree[dialogue.State, dialogue.Goal]
	done := env.Terminal(env.State())

	for turn := 1; turn <= turns && !done; turn++ {
		result, err := planner.Search(ctx, env, done, tree)
		if err != nil {
			return err
		}
		goal := result.Action
		history = append(history, metrics.SearchRecord{Turn: turn, Action: string(goal), SearchMetric: result.Metric})

		var reward float64
		var state dialogue.State
		state, reward, done, err = env.Step(ctx, goal)
		if err != nil {
			return fmt.Errorf("failed to play goal %q: %w", goal, err)
		}
		log.Info().Int("turn", turn).Str("goal", string(goal)).Float64("reward", reward).Bool("done", done).Msg("turn played")
		last := state.Turns[len(state.Turns)-2:]
		fmt.Printf("[%s] %s\n", goal, last[0].Content)
		fmt.Printf("user: %s\n", last[1].Content)

		var reused bool
		tree, reused = result.Tree.Advance(goal, state, env.Equal)
		if !reused {
			tree = nil
		}
	}

	if records == "" {
		return nil
	}
	writer, err := metrics.NewWriter(records)
	if err != nil {
		return err
	}
	if err := writer.WriteRewardHistory(planner.RewardHistory()); err != nil {
		return err
	}
	if err := writer.WriteSearchRecords(history); err != nil {
		return err
	}
	log.Info().Str("dir", writer.Dir()).Msg("records written")
	return nil
}

func listen(ctx context.Context, addr string, planner *dialogueAgent, w world) error {
	mux := http.NewServeMux()
	mux.Handle("/act", agent.NewHandler(planner, func(state dialogue.State) (searcher.Environment[dialogue.State, dialogue.Goal], bool) {
		env := w.env(state)
		return env, env.Terminal(state)
	}))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdown)
	}()

	log.Info().Str("addr", addr).Msg("planner listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
