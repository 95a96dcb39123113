package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

var weekdayKeys = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type SettingsStore interface {
	GetSettings(ctx context.Context) (model.SiteSettings, error)
	SaveSettings(ctx context.Context, s model.SiteSettings) error
}

type SettingsService struct {
	store  SettingsStore
	logger *zap.Logger
}

func NewSettingsService(store SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

func (s *SettingsService) Get(ctx context.Context) (model.SiteSettings, error) {
	return s.store.GetSettings(ctx)
}

// Update validates and stores new booking settings. Weekdays missing from the
// business hours are stored as closed.
func (s *SettingsService) Update(ctx context.Context, settings model.SiteSettings) (model.SiteSettings, error) {
	if err := ValidateSettings(settings); err != nil {
		return model.SiteSettings{}, err
	}

	hours := make(model.BusinessHours, 7)
	for _, wd := range weekdayKeys {
		day, ok := settings.BusinessHours[wd]
		if !ok {
			day = model.BusinessHoursDay{Closed: true}
		}
		hours[wd] = day
	}
	settings.BusinessHours = hours

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return model.SiteSettings{}, err
	}

	s.logger.Info("Booking settings updated",
		zap.Bool("booking_enabled", settings.BookingEnabled),
		zap.Int("max_advance_days", settings.BookingMaxAdvanceDays),
		zap.Int("min_notice_hours", settings.BookingMinNoticeHours),
		zap.Int("buffer_minutes", settings.BookingBufferMinutes),
	)
	return settings, nil
}

// ValidateSettings rejects settings the availability engine would silently replace.
func ValidateSettings(s model.SiteSettings) error {
	if s.BookingMaxAdvanceDays <= 0 || s.BookingMaxAdvanceDays > 365 {
		return fmt.Errorf("%w: max advance days must be between 1 and 365", ErrInvalidRequest)
	}
	if s.BookingMinNoticeHours < 0 {
		return fmt.Errorf("%w: min notice hours must not be negative", ErrInvalidRequest)
	}
	if s.BookingBufferMinutes < 0 || s.BookingBufferMinutes > 120 {
		return fmt.Errorf("%w: buffer minutes must be between 0 and 120", ErrInvalidRequest)
	}
	for key, day := range s.BusinessHours {
		if !isWeekdayKey(key) {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidRequest, key)
		}
		if day.Closed {
			continue
		}
		open, err := timeutil.ParseClock(day.Open)
		if err != nil {
			return fmt.Errorf("%s open: %w", key, err)
		}
		closeAt, err := timeutil.ParseClock(day.Close)
		if err != nil {
			return fmt.Errorf("%s close: %w", key, err)
		}
		if open >= closeAt {
			return fmt.Errorf("%w: %s opens after it closes", ErrInvalidRequest, key)
		}
	}
	return nil
}

func isWeekdayKey(key string) bool {
	for _, k := range weekdayKeys {
		if k == key {
			return true
		}
	}
	return false
}
