// Package cache keeps showtime availability projections in Redis.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// AvailabilityCache is a read-through cache for seat availability.  It
// is invalidated after every committed seat transition; TTL only bounds
// staleness when an invalidation is lost.  Redis errors are logged and
// treated as misses.
//
// Each showtime carries a generation counter.  Invalidate bumps it, and
// Set only stores a projection read under the current generation, so a
// reader that started before a mutation cannot overwrite the
// invalidation with its older snapshot.
type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewAvailabilityCache returns nil when rdb is nil so callers can fall
// back to the store without special casing.
func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration, prefix string, log *zap.Logger) *AvailabilityCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl, prefix: prefix, log: log}
}

// genTTL outlives any read; it is refreshed on every invalidation.
const genTTL = 24 * time.Hour

// setIfGeneration stores ARGV[2] under KEYS[1] only while the generation
// at KEYS[2] still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *AvailabilityCache) key(showtimeID string) string {
	return c.prefix + ":availability:" + showtimeID
}

func (c *AvailabilityCache) genKey(showtimeID string) string {
	return c.prefix + ":availability:gen:" + showtimeID
}

// Generation returns the token a reader captures before loading seats
// from the store.  A negative value means the counter could not be
// read, and the following Set is skipped.
func (c *AvailabilityCache) Generation(ctx context.Context, showtimeID string) int64 {
	n, err := c.rdb.Get(ctx, c.genKey(showtimeID)).Int64()
	switch {
	case err == redis.Nil:
		return 0
	case err != nil:
		c.log.Warn("availability generation read failed", zap.String("showtime_id", showtimeID), zap.Error(err))
		return -1
	}
	return n
}

func (c *AvailabilityCache) Get(ctx context.Context, showtimeID string) (*model.Availability, bool) {
	raw, err := c.rdb.Get(ctx, c.key(showtimeID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("availability cache read failed", zap.String("showtime_id", showtimeID), zap.Error(err))
		}
		return nil, false
	}
	var a model.Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		c.log.Warn("availability cache entry corrupt", zap.String("showtime_id", showtimeID), zap.Error(err))
		return nil, false
	}
	return &a, true
}

// Set stores a, provided no invalidation happened since gen was taken.
func (c *AvailabilityCache) Set(ctx context.Context, a *model.Availability, gen int64) {
	if gen < 0 {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	keys := []string{c.key(a.ShowtimeID), c.genKey(a.ShowtimeID)}
	stored, err := setIfGeneration.Run(ctx, c.rdb, keys, strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.log.Warn("availability cache write failed", zap.String("showtime_id", a.ShowtimeID), zap.Error(err))
		return
	}
	if stored == 0 {
		c.log.Debug("availability snapshot superseded", zap.String("showtime_id", a.ShowtimeID), zap.Int64("generation", gen))
	}
}

// Invalidate drops the entry and advances the generation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, showtimeID string) {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.genKey(showtimeID))
		p.Expire(ctx, c.genKey(showtimeID), genTTL)
		p.Del(ctx, c.key(showtimeID))
		return nil
	})
	if err != nil {
		c.log.Warn("availability cache invalidate failed", zap.String("showtime_id", showtimeID), zap.Error(err))
	}
}
