package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// memoryRedis implements SETNX and the release script.
type memoryRedis struct {
	redis.Cmdable
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if m.setErr != nil {
		return redis.NewBoolResult(false, m.setErr)
	}
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if m.data[keys[0]] == args[0].(string) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestSlotLocker(t *testing.T) {
	ctx := context.Background()
	date := timeutil.Date(2026, time.October, 20)

	t.Run("second hold on the same slot fails until released", func(t *testing.T) {
		rdb := newMemoryRedis()
		l := NewSlotLocker(rdb, 0, zap.NewNop())

		release, err := l.Hold(ctx, date, "09:00")
		require.NoError(t, err)
		assert.Equal(t, DefaultHoldTTL, rdb.ttls["slot-hold:2026-10-20:09:00"])

		_, err = l.Hold(ctx, date, "09:00")
		assert.ErrorIs(t, err, ErrHeld)

		other, err := l.Hold(ctx, date, "10:15")
		require.NoError(t, err)
		other(ctx)

		release(ctx)
		_, err = l.Hold(ctx, date, "09:00")
		assert.NoError(t, err)
	})

	t.Run("release does not remove a hold taken over by someone else", func(t *testing.T) {
		rdb := newMemoryRedis()
		l := NewSlotLocker(rdb, time.Second, zap.NewNop())

		release, err := l.Hold(ctx, date, "11:30")
		require.NoError(t, err)

		key := Key(date, "11:30")
		rdb.data[key] = "someone-else"
		release(ctx)

		assert.Equal(t, "someone-else", rdb.data[key])
	})

	t.Run("redis error is returned", func(t *testing.T) {
		rdb := newMemoryRedis()
		rdb.setErr = errors.New("connection refused")
		l := NewSlotLocker(rdb, time.Second, zap.NewNop())

		_, err := l.Hold(ctx, date, "09:00")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrHeld)
	})
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Hold(context.Background(), time.Time{}, "09:00")
	require.NoError(t, err)
	release(context.Background())
}
