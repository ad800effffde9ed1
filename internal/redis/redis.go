package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// AllDates is the variant holding the unfiltered timeline.
const AllDates = "all"

func NewClient(address, username, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})
}

// TimelineCache keeps rendered device timelines keyed by lookup code. Each
// variant (AllDates or one date) is its own key with its own TTL, namespaced by
// a per-schedule generation. Invalidate bumps the generation, so payloads
// written by readers that started before a change land under a retired
// generation and are never served. A nil *TimelineCache is a valid,
// always-missing cache.
type TimelineCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTimelineCache(rdb *redis.Client, ttl time.Duration) *TimelineCache {
	return &TimelineCache{rdb: rdb, ttl: ttl}
}

func generationKey(code string) string {
	return "timeline:" + code + ":gen"
}

func variantKey(code string, gen int64, field string) string {
	return fmt.Sprintf("timeline:%s:%d:%s", code, gen, field)
}

// Get returns the payload cached for field (a YYYY-MM-DD date or AllDates)
// and the generation it was looked up under. Pass that generation to Set
// once the payload is built. gen is -1 when Redis could not be read.
func (c *TimelineCache) Get(ctx context.Context, code, field string) (payload []byte, gen int64, ok bool) {
	if c == nil {
		return nil, -1, false
	}
	gen, err := c.rdb.Get(ctx, generationKey(code)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("lookup_code", code).Msg("timeline cache read failed")
		return nil, -1, false
	}

	b, err := c.rdb.Get(ctx, variantKey(code, gen, field)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		log.Warn().Err(err).Str("lookup_code", code).Msg("timeline cache read failed")
		return nil, -1, false
	}
	return b, gen, true
}

// Set stores payload for field under gen. Only that variant's TTL starts.
func (c *TimelineCache) Set(ctx context.Context, code, field string, gen int64, payload []byte) {
	if c == nil || gen < 0 {
		return
	}
	if err := c.rdb.Set(ctx, variantKey(code, gen, field), payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("lookup_code", code).Msg("timeline cache write failed")
	}
}

// Invalidate retires every cached variant of a schedule's timeline. The
// retired keys expire on their own.
func (c *TimelineCache) Invalidate(ctx context.Context, code string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Incr(ctx, generationKey(code)).Err(); err != nil {
		log.Error().Err(err).Str("lookup_code", code).Msg("timeline cache invalidation failed")
		return err
	}
	return nil
}

func (c *TimelineCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
