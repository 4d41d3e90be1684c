package assess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"recplan/dialogue"
	"recplan/searcher"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "recplan:assess:"

// Cached memoizes an assessor in redis. Identical continuations are scored
// once per TTL; redis failures fall back to the wrapped assessor.
type Cached struct {
	next  searcher.Assessor[dialogue.State]
	redis *redis.Client
	ttl   time.Duration
}

func NewCached(next searcher.Assessor[dialogue.State], rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, redis: rdb, ttl: ttl}
}

func (c *Cached) Assess(ctx context.Context, state dialogue.State) (float64, error) {
	key := Key(state)

	score, err := c.redis.Get(ctx, key).Float64()
	if err == nil {
		log.Debug().Str("key", key).Msg("assessment cache hit")
		return score, nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("assessment cache get failed")
	}

	score, err = c.next.Assess(ctx, state)
	if err != nil {
		return 0, err
	}
	if err := c.redis.Set(ctx, key, score, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("assessment cache set failed")
	}
	return score, nil
}

// Key identifies a conversation by its target and utterances.
func Key(state dialogue.State) string {
	h := sha256.New()
	h.Write([]byte(state.Target.Topic))
	h.Write([]byte{0})
	h.Write([]byte(state.Target.Goal))
	for _, turn := range state.Turns {
		h.Write([]byte{0})
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(turn.Content))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
