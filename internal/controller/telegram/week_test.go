package telegram

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type stubBookings struct {
	byDate map[string][]*model.Booking
	err    error
}

func (s *stubBookings) FindBookingsOnDate(_ context.Context, date time.Time, _ []model.BookingStatus) ([]*model.Booking, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDate[timeutil.FormatDate(date)], nil
}

func TestWeekStart(t *testing.T) {
	c := newTestController(&stubAvailability{})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "today is sunday", args: nil, want: "2026-10-12"},
		{name: "monday stays", args: []string{"2026-10-19"}, want: "2026-10-19"},
		{name: "midweek", args: []string{"2026-10-22"}, want: "2026-10-19"},
		{name: "across new year", args: []string{"2027-01-01"}, want: "2026-12-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monday, err := c.weekStart(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, timeutil.FormatDate(monday))
		})
	}

	_, err := c.weekStart([]string{"next-week"})
	assert.ErrorIs(t, err, timeutil.ErrInvalidDate)
}

func TestMergeSlots(t *testing.T) {
	blocks := mergeSlots([]model.TimeSlot{
		{Start: "10:00", End: "10:30"},
		{Start: "09:00", End: "09:30"},
		{Start: "09:30", End: "10:00"},
		{Start: "13:00", End: "13:30"},
		{Start: "bad", End: "13:30"},
	})

	require.Len(t, blocks, 2)
	assert.Equal(t, WeekBlock{Start: 9 * 60, End: 10*60 + 30, Kind: blockFree}, blocks[0])
	assert.Equal(t, WeekBlock{Start: 13 * 60, End: 13*60 + 30, Kind: blockFree}, blocks[1])
	assert.Empty(t, mergeSlots(nil))
}

func TestCollectWeek(t *testing.T) {
	av := &stubAvailability{slots: []model.TimeSlot{{Start: "09:00", End: "09:30"}, {Start: "09:15", End: "09:45"}}}
	bookings := &stubBookings{byDate: map[string][]*model.Booking{
		"2026-12-16": {
			{ClientName: "Thandi", StartTime: "11:00", EndTime: "12:00", Status: model.BookingStatusConfirmed},
			{ClientName: "Guest", StartTime: "14:00", EndTime: "14:30", Status: model.BookingStatusPending},
		},
	}}
	c := newTestController(av)
	c.bookings = bookings

	days, err := c.collectWeek(context.Background(), timeutil.Date(2026, time.December, 14))
	require.NoError(t, err)
	require.Len(t, days, 7)

	assert.Equal(t, "2026-12-14", timeutil.FormatDate(days[0].Date))
	assert.Equal(t, "2026-12-20", timeutil.FormatDate(days[6].Date))
	assert.Equal(t, "Day of Reconciliation", days[2].Holiday)
	assert.Empty(t, days[0].Holiday)
	assert.Equal(t, model.SessionTypeFreeConsultation, av.gotType)

	require.Len(t, days[2].Blocks, 3)
	assert.Equal(t, WeekBlock{Start: 9 * 60, End: 9*60 + 45, Kind: blockFree}, days[2].Blocks[0])
	assert.Equal(t, blockConfirmed, days[2].Blocks[1].Kind)
	assert.Equal(t, "Thandi", days[2].Blocks[1].Label)
	assert.Equal(t, blockPending, days[2].Blocks[2].Kind)

	assert.Equal(t, "Week 2026-12-14 - 2026-12-20: 1 confirmed, 1 pending", weekCaption(days))
}

func TestCollectWeek_StoreError(t *testing.T) {
	c := newTestController(&stubAvailability{})
	c.bookings = &stubBookings{err: errors.New("db down")}

	_, err := c.collectWeek(context.Background(), timeutil.Date(2026, time.October, 19))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestRenderWeekImage(t *testing.T) {
	monday := timeutil.Date(2026, time.October, 12)
	days := make([]WeekDay, daysInWeek)
	for i := range days {
		days[i] = WeekDay{Date: timeutil.AddDays(monday, i)}
	}
	days[1].Blocks = []WeekBlock{
		{Start: 9 * 60, End: 12 * 60, Kind: blockFree},
		{Start: 13 * 60, End: 14 * 60, Kind: blockConfirmed, Label: "A very long client name indeed"},
	}

	img, err := RenderWeekImage(days, time.Date(2026, 10, 18, 10, 0, 0, 0, timeutil.Location))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, decoded.Bounds().Dx())
	assert.Equal(t, imageHeight, decoded.Bounds().Dy())
}

func TestCalculateHourRange(t *testing.T) {
	assert.Equal(t, hourRange{start: 8, end: 18, total: 10}, calculateHourRange(nil))

	days := []WeekDay{{Blocks: []WeekBlock{{Start: 9*60 + 30, End: 16*60 + 15}}}}
	assert.Equal(t, hourRange{start: 8, end: 18, total: 10}, calculateHourRange(days))

	days = []WeekDay{{Blocks: []WeekBlock{{Start: 30, End: 23*60 + 30}}}}
	assert.Equal(t, hourRange{start: 0, end: 24, total: 24}, calculateHourRange(days))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 18))
	assert.Equal(t, "Nomvula Dlamini...", truncate("Nomvula Dlamini-Mokoena", 18))
}
