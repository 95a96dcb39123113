package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
)

const DefaultCacheTTL = 2 * time.Minute

// CachedGateway keeps free/busy answers in redis for a short time so that browsing
// slots does not hit the external calendar on every request. Redis problems fall
// through to the wrapped gateway.
type CachedGateway struct {
	next   Gateway
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewCachedGateway(next Gateway, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedGateway {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGateway{next: next, rdb: rdb, ttl: ttl, prefix: "freebusy", logger: logger}
}

func (c *CachedGateway) key(startUTC, endUTC time.Time) string {
	return c.prefix + ":" + startUTC.UTC().Format(time.RFC3339) + ":" + endUTC.UTC().Format(time.RFC3339)
}

func (c *CachedGateway) GetFreeBusy(ctx context.Context, startUTC, endUTC time.Time) ([]model.BusyInterval, error) {
	key := c.key(startUTC, endUTC)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var busy []model.BusyInterval
		if err := json.Unmarshal(raw, &busy); err == nil {
			return busy, nil
		}
		c.logger.Warn("Discarding unreadable free/busy cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Free/busy cache read failed", zap.String("key", key), zap.Error(err))
	}

	busy, err := c.next.GetFreeBusy(ctx, startUTC, endUTC)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(busy)
	if err != nil {
		return busy, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Free/busy cache write failed", zap.String("key", key), zap.Error(err))
	}

	return busy, nil
}
