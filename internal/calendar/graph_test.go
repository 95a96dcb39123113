package calendar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scheduleResponse = `{
  "value": [{
    "scheduleId": "coach@example.com",
    "scheduleItems": [
      {"status": "busy", "start": {"dateTime": "2026-10-20T07:30:00.0000000", "timeZone": "UTC"}, "end": {"dateTime": "2026-10-20T08:00:00.0000000", "timeZone": "UTC"}},
      {"status": "free", "start": {"dateTime": "2026-10-20T09:00:00.0000000", "timeZone": "UTC"}, "end": {"dateTime": "2026-10-20T10:00:00.0000000", "timeZone": "UTC"}},
      {"status": "oof", "start": {"dateTime": "2026-10-20T12:00:00", "timeZone": "UTC"}, "end": {"dateTime": "2026-10-20T13:00:00", "timeZone": "UTC"}}
    ]
  }]
}`

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GraphGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newGraphGateway(srv.Client(), GraphConfig{
		BaseURL:      srv.URL,
		CalendarUser: "coach@example.com",
		MaxRetries:   2,
	}, zap.NewNop())
}

func TestGraphGateway_GetFreeBusy(t *testing.T) {
	var got getScheduleRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/coach@example.com/calendar/getSchedule", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(scheduleResponse))
	})

	start := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 20, 22, 0, 0, 0, time.UTC)

	busy, err := g.GetFreeBusy(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, time.Date(2026, 10, 20, 7, 30, 0, 0, time.UTC), busy[0].Start)
	assert.Equal(t, time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC), busy[0].End)
	assert.Equal(t, time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC), busy[1].Start)

	assert.Equal(t, []string{"coach@example.com"}, got.Schedules)
	assert.Equal(t, "2026-10-19T22:00:00", got.StartTime.DateTime)
	assert.Equal(t, "UTC", got.EndTime.TimeZone)
}

func TestGraphGateway_RetriesTransientErrors(t *testing.T) {
	var calls int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(scheduleResponse))
	})

	busy, err := g.GetFreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, busy, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGraphGateway_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"code":"ErrorAccessDenied"}}`, http.StatusForbidden)
	})

	_, err := g.GetFreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGraphGateway_ScheduleError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":[{"scheduleId":"coach@example.com","error":{"message":"mailbox not found"}}]}`))
	})

	_, err := g.GetFreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox not found")
}

func TestGraphConfigEnabled(t *testing.T) {
	assert.False(t, GraphConfig{}.Enabled())
	assert.True(t, GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", CalendarUser: "u"}.Enabled())
}
