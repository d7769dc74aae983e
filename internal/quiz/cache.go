package quiz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shareCachePrefix = "share_view:"

// ShareCache keeps answer-stripped student views in Redis so hot share
// links do not hit Postgres on every load.
type ShareCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewShareCache(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *ShareCache {
	return &ShareCache{
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "share_cache").Logger(),
	}
}

func (c *ShareCache) Get(ctx context.Context, token string) (*StudentQuiz, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, shareCachePrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("share cache read failed")
		}
		return nil, false
	}
	var view StudentQuiz
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.Warn().Err(err).Msg("share cache entry corrupt")
		return nil, false
	}
	return &view, true
}

func (c *ShareCache) Set(ctx context.Context, token string, view *StudentQuiz) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, shareCachePrefix+token, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("share cache write failed")
	}
}

// Invalidate drops the cached view for a token, used when a quiz is
// deleted, its share token rotated, or its images backfilled.
func (c *ShareCache) Invalidate(ctx context.Context, token string) {
	if c.redis == nil || token == "" {
		return
	}
	if err := c.redis.Del(ctx, shareCachePrefix+token).Err(); err != nil {
		c.logger.Warn().Err(err).Str("token", token).Msg("share cache invalidate failed")
	}
}
