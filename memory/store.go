package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"recplan/dialogue"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// Instance is a past dialogue context with the continuation that followed it
// and the assessment score of that continuation.
type Instance struct {
	Context      string          `json:"context"`
	Continuation []dialogue.Turn `json:"continuation"`
	Score        float64         `json:"score"`
}

var ErrIndexOutOfRange = errors.New("memory: instance index out of range")

type Config struct {
	// Epsilon is the minimum score for a continuation that names the target
	// to count as a success.
	Epsilon        float64
	PositiveReward float64
	NegativeReward float64
	Outcome        dialogue.OutcomeParams
}

func DefaultConfig() Config {
	return Config{
		Epsilon:        1.0,
		PositiveReward: 1,
		NegativeReward: -1,
		Outcome:        dialogue.DefaultOutcomeParams(),
	}
}

// Store is an in-memory retrieval memory over dialogue contexts.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	embedder  Embedder
	instances []Instance
	vectors   [][]float64
}

func NewStore(embedder Embedder, cfg Config) *Store {
	return &Store{cfg: cfg, embedder: embedder}
}

// Load reads a JSON array of instances from path.
func Load(ctx context.Context, path string, embedder Embedder, cfg Config) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}
	var instances []Instance
	if err := json.Unmarshal(data, &instances); err != nil {
		return nil, fmt.Errorf("failed to decode memory file: %w", err)
	}

	s := NewStore(embedder, cfg)
	if err := s.Add(ctx, instances...); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("instances", len(instances)).Msg("memory loaded")
	return s, nil
}

func (s *Store) Add(ctx context.Context, instances ...Instance) error {
	vectors := make([][]float64, len(instances))
	for i, instance := range instances {
		if err := ctx.Err(); err != nil {
			return err
		}
		vectors[i] = s.embedder.Embed(instance.Context)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = append(s.instances, instances...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

func (s *Store) Instance(idx int) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.instances) {
		return Instance{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}
	return s.instances[idx], nil
}

// Search returns the cosine similarities and indices of the k instances whose
// context is closest to the query's, best first.
func (s *Store) Search(ctx context.Context, query dialogue.State, k int) ([]float64, []int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	q := s.embedder.Embed(query.ContextText())

	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := make([]int, len(s.vectors))
	scores := make([]float64, len(s.vectors))
	for i, v := range s.vectors {
		indices[i] = i
		scores[i] = cosine(q, v)
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	if k > len(indices) {
		k = len(indices)
	}
	top := make([]float64, k)
	for i := range top {
		top[i] = scores[indices[i]]
	}
	return top, indices[:k], nil
}

// Outcome rewards a stored continuation for the query's target: positive when
// the system named the target and the score reaches epsilon, negative otherwise.
func (s *Store) Outcome(ctx context.Context, query dialogue.State, idx int) (float64, error) {
	instance, err := s.Instance(idx)
	if err != nil {
		return 0, err
	}

	length := len(instance.Continuation)
	if dialogue.MentionsTarget(instance.Continuation, query.Target.Topic) && instance.Score >= s.cfg.Epsilon {
		return dialogue.OutcomeReward(s.cfg.PositiveReward, instance.Score, length, s.cfg.Outcome), nil
	}
	return dialogue.OutcomeReward(s.cfg.NegativeReward, 1-instance.Score, length, s.cfg.Outcome), nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
