package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
)

// memoryRedis implements the two commands the cache uses.
type memoryRedis struct {
	redis.Cmdable
	data   map[string][]byte
	getErr error
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = value.([]byte)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type countingGateway struct {
	busy  []model.BusyInterval
	err   error
	calls int
}

func (c *countingGateway) GetFreeBusy(context.Context, time.Time, time.Time) ([]model.BusyInterval, error) {
	c.calls++
	return c.busy, c.err
}

func TestCachedGateway(t *testing.T) {
	start := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	busy := []model.BusyInterval{{Start: start.Add(9 * time.Hour), End: start.Add(10 * time.Hour)}}

	t.Run("second call is served from cache", func(t *testing.T) {
		rdb := newMemoryRedis()
		next := &countingGateway{busy: busy}
		c := NewCachedGateway(next, rdb, time.Minute, zap.NewNop())

		first, err := c.GetFreeBusy(context.Background(), start, end)
		require.NoError(t, err)
		second, err := c.GetFreeBusy(context.Background(), start, end)
		require.NoError(t, err)

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, first, second)
		assert.Equal(t, time.Minute, rdb.ttls["freebusy:2026-10-19T22:00:00Z:2026-10-20T22:00:00Z"])
	})

	t.Run("redis failure falls through", func(t *testing.T) {
		rdb := newMemoryRedis()
		rdb.getErr = errors.New("connection refused")
		next := &countingGateway{busy: busy}
		c := NewCachedGateway(next, rdb, 0, zap.NewNop())

		got, err := c.GetFreeBusy(context.Background(), start, end)
		require.NoError(t, err)
		assert.Equal(t, busy, got)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("gateway errors are not cached", func(t *testing.T) {
		rdb := newMemoryRedis()
		next := &countingGateway{err: errors.New("timeout")}
		c := NewCachedGateway(next, rdb, time.Minute, zap.NewNop())

		_, err := c.GetFreeBusy(context.Background(), start, end)
		assert.Error(t, err)
		assert.Empty(t, rdb.data)
	})
}
