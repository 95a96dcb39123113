package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
)

func TestPatchAssignments(t *testing.T) {
	t.Run("empty patch", func(t *testing.T) {
		sets, args := patchAssignments(model.BookingPatch{})
		assert.Empty(t, sets)
		assert.Empty(t, args)
	})

	t.Run("reschedule patch keeps placeholders in order", func(t *testing.T) {
		date := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
		start, end := "13:00", "14:00"
		count := 1

		sets, args := patchAssignments(model.BookingPatch{
			Date:            &date,
			StartTime:       &start,
			EndTime:         &end,
			RescheduleCount: &count,
		})

		assert.Equal(t, []string{
			"date = $1",
			"start_time = $2",
			"end_time = $3",
			"reschedule_count = $4",
		}, sets)
		assert.Equal(t, []any{date, "13:00", "14:00", 1}, args)
	})

	t.Run("status is written as text", func(t *testing.T) {
		status := model.BookingStatusCancelled
		late := true

		sets, args := patchAssignments(model.BookingPatch{Status: &status, IsLateCancel: &late})

		require.Len(t, sets, 2)
		assert.Equal(t, "status = $1", sets[0])
		assert.Equal(t, "cancelled", args[0])
		assert.Equal(t, true, args[1])
	})

	t.Run("first reschedule records the original slot and when it was left", func(t *testing.T) {
		movedAt := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
		date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
		start := "09:00"

		sets, args := patchAssignments(model.BookingPatch{
			RescheduledAt:     &movedAt,
			OriginalDate:      &date,
			OriginalStartTime: &start,
			OriginalMovedAt:   &movedAt,
		})

		assert.Equal(t, []string{
			"rescheduled_at = $1",
			"original_date = $2",
			"original_start_time = $3",
			"original_moved_at = $4",
		}, sets)
		assert.Equal(t, []any{movedAt, date, "09:00", movedAt}, args)
	})
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, []string{"pending", "confirmed"}, statusStrings(model.ActiveBookingStatuses))
}

func TestDecodeBusinessHours(t *testing.T) {
	logger := zap.NewNop()

	assert.Nil(t, decodeBusinessHours(nil, logger))
	assert.Nil(t, decodeBusinessHours([]byte("null"), logger))
	assert.Nil(t, decodeBusinessHours([]byte("{broken"), logger))

	hours := decodeBusinessHours([]byte(`{"monday":{"open":"08:00","close":"12:00","closed":false},"sunday":{"open":"","close":"","closed":true}}`), logger)
	require.Len(t, hours, 2)
	assert.Equal(t, model.BusinessHoursDay{Open: "08:00", Close: "12:00"}, hours["monday"])
	assert.True(t, hours["sunday"].Closed)
}
