// Package lock holds a slot in redis while a booking for it is being written.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

const DefaultHoldTTL = 30 * time.Second

// ErrHeld is returned when another request is already booking the same slot.
var ErrHeld = errors.New("slot is held by another request")

// Release gives a hold back.
type Release func(ctx context.Context)

// releaseScript deletes the key only if it still carries our value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type SlotLocker struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewSlotLocker(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *SlotLocker {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &SlotLocker{rdb: rdb, ttl: ttl, logger: logger}
}

// Key is the redis key of a slot hold.
func Key(date time.Time, start string) string {
	return "slot-hold:" + timeutil.FormatDate(date) + ":" + start
}

// Hold takes the slot for at most the configured TTL. ErrHeld is returned when someone
// else holds it.
func (l *SlotLocker) Hold(ctx context.Context, date time.Time, start string) (Release, error) {
	key := Key(date, start)
	value := uuid.NewString()

	acquired, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("hold slot: %w", err)
	}
	if !acquired {
		l.logger.Info("Slot hold not acquired", zap.String("key", key))
		return nil, ErrHeld
	}

	l.logger.Debug("Slot hold acquired", zap.String("key", key), zap.Duration("ttl", l.ttl))

	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, value).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release slot hold", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Noop is used when redis is not configured. The database index still rejects
// double bookings.
type Noop struct{}

func (Noop) Hold(context.Context, time.Time, string) (Release, error) {
	return func(context.Context) {}, nil
}
