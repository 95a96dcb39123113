package repository

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

type SettingsRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSettingsRepository(repo *base.Repository, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{Repository: repo, logger: logger}
}

// GetSettings returns the booking settings. A missing row or missing business hours
// fall back to the defaults.
func (r *SettingsRepository) GetSettings(ctx context.Context) (model.SiteSettings, error) {
	query := `
		SELECT booking_enabled, booking_max_advance_days, booking_min_notice_hours,
		       booking_buffer_minutes, business_hours
		FROM site_settings
		WHERE id = 1
	`

	var (
		s        model.SiteSettings
		rawHours []byte
	)
	err := r.QueryRow(ctx, query).Scan(
		&s.BookingEnabled,
		&s.BookingMaxAdvanceDays,
		&s.BookingMinNoticeHours,
		&s.BookingBufferMinutes,
		&rawHours,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return model.DefaultSiteSettings(), nil
		}
		return model.SiteSettings{}, fmt.Errorf("get site settings: %w", err)
	}

	s.BusinessHours = decodeBusinessHours(rawHours, r.logger)
	return s.WithDefaults(), nil
}

// SaveSettings writes the single settings row.
func (r *SettingsRepository) SaveSettings(ctx context.Context, s model.SiteSettings) error {
	hours, err := json.Marshal(s.BusinessHours)
	if err != nil {
		return fmt.Errorf("marshal business hours: %w", err)
	}

	query := `
		INSERT INTO site_settings (id, booking_enabled, booking_max_advance_days,
		                           booking_min_notice_hours, booking_buffer_minutes, business_hours)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			booking_enabled = EXCLUDED.booking_enabled,
			booking_max_advance_days = EXCLUDED.booking_max_advance_days,
			booking_min_notice_hours = EXCLUDED.booking_min_notice_hours,
			booking_buffer_minutes = EXCLUDED.booking_buffer_minutes,
			business_hours = EXCLUDED.business_hours,
			updated_at = NOW()
	`

	if _, err := r.ExecAffected(ctx, query,
		s.BookingEnabled,
		s.BookingMaxAdvanceDays,
		s.BookingMinNoticeHours,
		s.BookingBufferMinutes,
		hours,
	); err != nil {
		return fmt.Errorf("save site settings: %w", err)
	}
	return nil
}

func decodeBusinessHours(raw []byte, logger *zap.Logger) model.BusinessHours {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var hours model.BusinessHours
	if err := json.Unmarshal(raw, &hours); err != nil {
		logger.Warn("Ignoring unreadable business hours", zap.Error(err))
		return nil
	}
	return hours
}
