package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

func TestValidateSettings(t *testing.T) {
	valid := model.DefaultSiteSettings()
	require.NoError(t, ValidateSettings(valid))

	tests := []struct {
		name   string
		mutate func(s *model.SiteSettings)
		target error
	}{
		{"zero horizon", func(s *model.SiteSettings) { s.BookingMaxAdvanceDays = 0 }, ErrInvalidRequest},
		{"negative notice", func(s *model.SiteSettings) { s.BookingMinNoticeHours = -1 }, ErrInvalidRequest},
		{"huge buffer", func(s *model.SiteSettings) { s.BookingBufferMinutes = 240 }, ErrInvalidRequest},
		{"unknown weekday", func(s *model.SiteSettings) { s.BusinessHours["funday"] = model.BusinessHoursDay{Closed: true} }, ErrInvalidRequest},
		{"open after close", func(s *model.SiteSettings) {
			s.BusinessHours["monday"] = model.BusinessHoursDay{Open: "17:00", Close: "09:00"}
		}, ErrInvalidRequest},
		{"bad clock", func(s *model.SiteSettings) {
			s.BusinessHours["monday"] = model.BusinessHoursDay{Open: "9am", Close: "17:00"}
		}, timeutil.ErrInvalidClock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultSiteSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, ValidateSettings(s), tt.target)
		})
	}
}

func TestSettingsService_Update(t *testing.T) {
	store := &fakeSettings{}
	s := NewSettingsService(store, zap.NewNop())

	in := model.SiteSettings{
		BookingEnabled:        true,
		BookingMaxAdvanceDays: 30,
		BookingMinNoticeHours: 12,
		BookingBufferMinutes:  0,
		BusinessHours: model.BusinessHours{
			"monday": {Open: "08:00", Close: "12:00"},
		},
	}

	got, err := s.Update(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, store.saved)

	assert.Len(t, got.BusinessHours, 7)
	assert.False(t, got.BusinessHours["monday"].Closed)
	assert.True(t, got.BusinessHours["tuesday"].Closed)
	assert.Equal(t, 0, store.saved.BookingBufferMinutes)

	_, err = s.Update(context.Background(), model.SiteSettings{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
